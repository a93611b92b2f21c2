package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "geoindex.IndexService"

const (
	IndexService_CreateIndex_FullMethodName = "/" + serviceName + "/CreateIndex"
	IndexService_ListIndexes_FullMethodName = "/" + serviceName + "/ListIndexes"
	IndexService_LoadIndex_FullMethodName   = "/" + serviceName + "/LoadIndex"
	IndexService_DropIndex_FullMethodName   = "/" + serviceName + "/DropIndex"
	IndexService_Insert_FullMethodName      = "/" + serviceName + "/Insert"
	IndexService_Search_FullMethodName      = "/" + serviceName + "/Search"
)

type IndexServiceClient interface {
	CreateIndex(ctx context.Context, in *CreateIndexRequest, opts ...grpc.CallOption) (*CreateIndexResponse, error)
	ListIndexes(ctx context.Context, in *ListIndexesRequest, opts ...grpc.CallOption) (*ListIndexesResponse, error)
	LoadIndex(ctx context.Context, in *LoadIndexRequest, opts ...grpc.CallOption) (*LoadIndexResponse, error)
	DropIndex(ctx context.Context, in *DropIndexRequest, opts ...grpc.CallOption) (*DropIndexResponse, error)
	Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error)
	Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error)
}

type indexServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewIndexServiceClient(cc grpc.ClientConnInterface) IndexServiceClient {
	return &indexServiceClient{cc}
}

func (c *indexServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *indexServiceClient) CreateIndex(ctx context.Context, in *CreateIndexRequest, opts ...grpc.CallOption) (*CreateIndexResponse, error) {
	out := new(CreateIndexResponse)
	if err := c.invoke(ctx, IndexService_CreateIndex_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexServiceClient) ListIndexes(ctx context.Context, in *ListIndexesRequest, opts ...grpc.CallOption) (*ListIndexesResponse, error) {
	out := new(ListIndexesResponse)
	if err := c.invoke(ctx, IndexService_ListIndexes_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexServiceClient) LoadIndex(ctx context.Context, in *LoadIndexRequest, opts ...grpc.CallOption) (*LoadIndexResponse, error) {
	out := new(LoadIndexResponse)
	if err := c.invoke(ctx, IndexService_LoadIndex_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexServiceClient) DropIndex(ctx context.Context, in *DropIndexRequest, opts ...grpc.CallOption) (*DropIndexResponse, error) {
	out := new(DropIndexResponse)
	if err := c.invoke(ctx, IndexService_DropIndex_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexServiceClient) Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error) {
	out := new(InsertResponse)
	if err := c.invoke(ctx, IndexService_Insert_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexServiceClient) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	out := new(SearchResponse)
	if err := c.invoke(ctx, IndexService_Search_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// IndexServiceServer is the server API for IndexService. Implementations
// must embed UnimplementedIndexServiceServer.
type IndexServiceServer interface {
	CreateIndex(context.Context, *CreateIndexRequest) (*CreateIndexResponse, error)
	ListIndexes(context.Context, *ListIndexesRequest) (*ListIndexesResponse, error)
	LoadIndex(context.Context, *LoadIndexRequest) (*LoadIndexResponse, error)
	DropIndex(context.Context, *DropIndexRequest) (*DropIndexResponse, error)
	Insert(context.Context, *InsertRequest) (*InsertResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	mustEmbedUnimplementedIndexServiceServer()
}

type UnimplementedIndexServiceServer struct{}

func (UnimplementedIndexServiceServer) CreateIndex(context.Context, *CreateIndexRequest) (*CreateIndexResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateIndex not implemented")
}
func (UnimplementedIndexServiceServer) ListIndexes(context.Context, *ListIndexesRequest) (*ListIndexesResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListIndexes not implemented")
}
func (UnimplementedIndexServiceServer) LoadIndex(context.Context, *LoadIndexRequest) (*LoadIndexResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method LoadIndex not implemented")
}
func (UnimplementedIndexServiceServer) DropIndex(context.Context, *DropIndexRequest) (*DropIndexResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DropIndex not implemented")
}
func (UnimplementedIndexServiceServer) Insert(context.Context, *InsertRequest) (*InsertResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Insert not implemented")
}
func (UnimplementedIndexServiceServer) Search(context.Context, *SearchRequest) (*SearchResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Search not implemented")
}
func (UnimplementedIndexServiceServer) mustEmbedUnimplementedIndexServiceServer() {}

func RegisterIndexServiceServer(s grpc.ServiceRegistrar, srv IndexServiceServer) {
	s.RegisterService(&IndexService_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req any, Resp any](method string, call func(IndexServiceServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IndexServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(IndexServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var IndexService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*IndexServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateIndex",
			Handler:    unaryHandler(IndexService_CreateIndex_FullMethodName, IndexServiceServer.CreateIndex),
		},
		{
			MethodName: "ListIndexes",
			Handler:    unaryHandler(IndexService_ListIndexes_FullMethodName, IndexServiceServer.ListIndexes),
		},
		{
			MethodName: "LoadIndex",
			Handler:    unaryHandler(IndexService_LoadIndex_FullMethodName, IndexServiceServer.LoadIndex),
		},
		{
			MethodName: "DropIndex",
			Handler:    unaryHandler(IndexService_DropIndex_FullMethodName, IndexServiceServer.DropIndex),
		},
		{
			MethodName: "Insert",
			Handler:    unaryHandler(IndexService_Insert_FullMethodName, IndexServiceServer.Insert),
		},
		{
			MethodName: "Search",
			Handler:    unaryHandler(IndexService_Search_FullMethodName, IndexServiceServer.Search),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geoindex/index.proto",
}
