// Package proto defines the IndexService contract shared by the runner and
// its clients. Messages travel as JSON over gRPC.
package proto

type IndexInfo struct {
	Id         string `json:"id"`
	NumRecords int32  `json:"numRecords"`
	MaxEntries int32  `json:"maxEntries"`
	Height     int32  `json:"height"`
	Timestamp  string `json:"timestamp"`
	FileSize   int64  `json:"fileSize"`
	Loaded     bool   `json:"loaded"`
}

type Record struct {
	Id   uint32  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type CreateIndexRequest struct {
	NumRecords int32  `json:"numRecords"`
	MaxEntries int32  `json:"maxEntries"`
	Seed       int64  `json:"seed"`
	Region     string `json:"region"`
}

type CreateIndexResponse struct {
	Index *IndexInfo `json:"index"`
}

type ListIndexesRequest struct{}

type ListIndexesResponse struct {
	Indexes []*IndexInfo `json:"indexes"`
}

type LoadIndexRequest struct {
	IndexId string `json:"indexId"`
}

type LoadIndexResponse struct {
	Index *IndexInfo `json:"index"`
}

type DropIndexRequest struct {
	IndexId string `json:"indexId"`
}

type DropIndexResponse struct{}

type InsertRequest struct {
	IndexId string    `json:"indexId"`
	Records []*Record `json:"records"`
}

type InsertResponse struct {
	Inserted   int32 `json:"inserted"`
	NumRecords int32 `json:"numRecords"`
}

type SearchRequest struct {
	IndexId string  `json:"indexId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type SearchResponse struct {
	Records []*Record `json:"records"`
}
