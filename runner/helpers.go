package runner

import (
	"context"

	"github.com/silenteh/GeoSpatialIndex/dataset"
	pb "github.com/silenteh/GeoSpatialIndex/proto"
	"github.com/silenteh/GeoSpatialIndex/rtree"

	"google.golang.org/grpc"
)

// toItems keys each record by its own coordinates.
func toItems(records []dataset.Record) []rtree.Item[dataset.Record] {
	items := make([]rtree.Item[dataset.Record], len(records))
	for i, rec := range records {
		items[i] = rtree.Item[dataset.Record]{Value: rec, X: rec.X, Y: rec.Y}
	}
	return items
}

func toProtoRecord(rec dataset.Record) *pb.Record {
	return &pb.Record{Id: rec.ID, Name: rec.Name, X: rec.X, Y: rec.Y}
}

func fromProtoRecord(rec *pb.Record) dataset.Record {
	return dataset.Record{ID: rec.Id, Name: rec.Name, X: rec.X, Y: rec.Y}
}

// localClient calls an IndexServiceServer in-process, for binaries that embed
// the runner instead of dialing it. Call options are ignored.
type localClient struct {
	srv pb.IndexServiceServer
}

func NewLocalClient(srv pb.IndexServiceServer) pb.IndexServiceClient {
	return &localClient{srv: srv}
}

func (c *localClient) CreateIndex(ctx context.Context, in *pb.CreateIndexRequest, _ ...grpc.CallOption) (*pb.CreateIndexResponse, error) {
	return c.srv.CreateIndex(ctx, in)
}

func (c *localClient) ListIndexes(ctx context.Context, in *pb.ListIndexesRequest, _ ...grpc.CallOption) (*pb.ListIndexesResponse, error) {
	return c.srv.ListIndexes(ctx, in)
}

func (c *localClient) LoadIndex(ctx context.Context, in *pb.LoadIndexRequest, _ ...grpc.CallOption) (*pb.LoadIndexResponse, error) {
	return c.srv.LoadIndex(ctx, in)
}

func (c *localClient) DropIndex(ctx context.Context, in *pb.DropIndexRequest, _ ...grpc.CallOption) (*pb.DropIndexResponse, error) {
	return c.srv.DropIndex(ctx, in)
}

func (c *localClient) Insert(ctx context.Context, in *pb.InsertRequest, _ ...grpc.CallOption) (*pb.InsertResponse, error) {
	return c.srv.Insert(ctx, in)
}

func (c *localClient) Search(ctx context.Context, in *pb.SearchRequest, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return c.srv.Search(ctx, in)
}
