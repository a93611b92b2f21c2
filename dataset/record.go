// Package dataset holds the records fed into an index, generates random
// ones and reads and writes them as record files.
package dataset

import (
	"fmt"
	"math/rand"

	"github.com/go-faker/faker/v4"
)

type Record struct {
	ID   uint32  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func (r Record) String() string {
	return fmt.Sprintf("#%d %s (%.5f, %.5f)", r.ID, r.Name, r.X, r.Y)
}

// Bounds is a longitude/latitude rectangle records are generated in.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

var (
	// USBounds roughly covers the continental United States.
	USBounds = Bounds{MinX: -125.0, MaxX: -65.0, MinY: 25.0, MaxY: 49.0}
	// PragueBounds covers the centre of Prague.
	PragueBounds = Bounds{MinX: 14.38, MaxX: 14.46, MinY: 50.06, MaxY: 50.10}
)

func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Generate creates n records spread uniformly over b. Positions are
// deterministic for a given seed; names come from faker.
func Generate(n int, b Bounds, seed int64) []Record {
	r := rand.New(rand.NewSource(seed))
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:   uint32(i + 1),
			Name: faker.Word() + " " + faker.Word(),
			X:    b.MinX + r.Float64()*(b.MaxX-b.MinX),
			Y:    b.MinY + r.Float64()*(b.MaxY-b.MinY),
		}
	}
	return records
}
