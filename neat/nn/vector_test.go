package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedVector(t *testing.T) {
	raw := RawVector{0, 0, 0}
	v := NewBoundedVector(raw)

	for i, x := range []float64{-3, 0.25, 7} {
		v.Set(i, x)
	}
	assert.Equal(t, RawVector{-3, 0.25, 7}, raw, "writes are stored unclamped")
	assert.Equal(t, 0.0, v.At(0))
	assert.Equal(t, 0.25, v.At(1))
	assert.Equal(t, 1.0, v.At(2))

	v.Set(2, 0.5)
	assert.Equal(t, 0.5, v.At(2), "reads reflect the newly written raw value")
	assert.Equal(t, 3, v.Len())
}

func TestMappedVector(t *testing.T) {
	data := []float64{10, 11, 12, 13}
	v := NewMappedVector(data, []int{3, 1})

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 13.0, v.At(0))
	v.Set(1, 5)
	assert.Equal(t, []float64{10, 5, 12, 13}, data)
	assert.Equal(t, []float64{13, 5}, CopyTo(nil, v))
}

func TestGetActivation(t *testing.T) {
	fn, err := GetActivation("relu")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, fn(-1))
	assert.Equal(t, 2.0, fn(2))

	_, err = GetActivation("softmax")
	assert.ErrorIs(t, err, ErrUnknownActivation)
}
