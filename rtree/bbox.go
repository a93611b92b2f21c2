package rtree

import "math"

// coordScale keeps roughly one metre of precision at the equator once
// degrees are truncated to integers.
const coordScale = 100000

// BBox is an axis-aligned rectangle on the integer grid.
type BBox struct {
	MinX, MinY    int32
	Width, Height int32
}

// PointBox returns the box a coordinate pair is keyed by: anchored at the
// origin, with the scaled coordinates as its width and height.
func PointBox(x, y float64) BBox {
	return BBox{Width: scaleCoord(x), Height: scaleCoord(y)}
}

// scaleCoord saturates at the int32 range; NaN scales to 0.
func scaleCoord(v float64) int32 {
	scaled := math.Abs(v) * coordScale
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt32:
		return math.MaxInt32
	}
	return int32(scaled)
}

// Anchored reports whether b starts at the origin and has no negative side,
// the only shape of box the tree can key.
func (b BBox) Anchored() bool {
	return b.MinX == 0 && b.MinY == 0 && b.Width >= 0 && b.Height >= 0
}

func (b BBox) MaxX() int32 { return b.MinX + b.Width }
func (b BBox) MaxY() int32 { return b.MinY + b.Height }

// Area is computed in 64 bits, scaled coordinates overflow int32 products.
func (b BBox) Area() int64 {
	return int64(b.Width) * int64(b.Height)
}

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	minX := min(b.MinX, o.MinX)
	minY := min(b.MinY, o.MinY)
	maxX := max(b.MaxX(), o.MaxX())
	maxY := max(b.MaxY(), o.MaxY())
	return BBox{MinX: minX, MinY: minY, Width: maxX - minX, Height: maxY - minY}
}

func (b BBox) Contains(o BBox) bool {
	return o.MinX >= b.MinX && o.MinY >= b.MinY &&
		o.MaxX() <= b.MaxX() && o.MaxY() <= b.MaxY()
}

func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX() && o.MinX <= b.MaxX() &&
		b.MinY <= o.MaxY() && o.MinY <= b.MaxY()
}

// Enlargement is the area b has to grow by to also cover o.
func (b BBox) Enlargement(o BBox) int64 {
	if b.Contains(o) {
		return 0
	}
	d := b.Union(o).Area() - b.Area()
	if d < 0 {
		return -d
	}
	return d
}

// qualifies reports whether a search for b has to look at candidate.
func (b BBox) qualifies(candidate BBox) bool {
	return b.Contains(candidate) || b.Intersects(candidate)
}
