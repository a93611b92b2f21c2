package api

import pb "github.com/silenteh/GeoSpatialIndex/proto"

type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func toFeatureCollection(records []*pb.Record) FeatureCollection {
	features := make([]Feature, len(records))
	for i, rec := range records {
		features[i] = Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{rec.X, rec.Y},
			},
			Properties: map[string]interface{}{
				"id":   rec.Id,
				"name": rec.Name,
			},
		}
	}
	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
