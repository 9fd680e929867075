package nn

// Vector is a fixed-length view over network values.
type Vector interface {
	Len() int
	At(i int) float64
	Set(i int, v float64)
}

// RawVector is a Vector backed directly by a slice.
type RawVector []float64

// Len implements Vector.
func (v RawVector) Len() int { return len(v) }

// At implements Vector.
func (v RawVector) At(i int) float64 { return v[i] }

// Set implements Vector.
func (v RawVector) Set(i int, x float64) { v[i] = x }

// MappedVector exposes selected elements of a backing slice, such as the output nodes of
// a network whose nodes are stored in another order.
type MappedVector struct {
	data []float64
	idx  []int
}

// NewMappedVector returns a vector whose element i is data[idx[i]].
func NewMappedVector(data []float64, idx []int) *MappedVector {
	return &MappedVector{data: data, idx: idx}
}

// Len implements Vector.
func (v *MappedVector) Len() int { return len(v.idx) }

// At implements Vector.
func (v *MappedVector) At(i int) float64 { return v.data[v.idx[i]] }

// Set implements Vector.
func (v *MappedVector) Set(i int, x float64) { v.data[v.idx[i]] = x }

// BoundedVector clamps reads of the wrapped vector to [0, 1]. Writes store the raw value,
// so the underlying data is never altered by reading.
type BoundedVector struct {
	inner Vector
}

// NewBoundedVector wraps inner.
func NewBoundedVector(inner Vector) *BoundedVector {
	return &BoundedVector{inner: inner}
}

// Len implements Vector.
func (v *BoundedVector) Len() int { return v.inner.Len() }

// At returns the wrapped value clamped to [0, 1].
func (v *BoundedVector) At(i int) float64 {
	return min(1, max(0, v.inner.At(i)))
}

// Set stores x unclamped.
func (v *BoundedVector) Set(i int, x float64) { v.inner.Set(i, x) }

// CopyTo copies the elements of v into dst and returns dst.
func CopyTo(dst []float64, v Vector) []float64 {
	dst = dst[:0]
	for i := 0; i < v.Len(); i++ {
		dst = append(dst, v.At(i))
	}
	return dst
}
