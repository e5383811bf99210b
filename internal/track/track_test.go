package track

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndTail(t *testing.T) {
	h := NewHistory[int](4)
	assert.Equal(t, 0, h.Len())
	_, ok := h.Last()
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		h.Append(i)
	}
	assert.Equal(t, []int{1, 2, 3}, h.Tail(10))
	assert.Equal(t, []int{2, 3}, h.Tail(2))

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestHistory_Wraps(t *testing.T) {
	h := NewHistory[int](3)
	for i := 1; i <= 7; i++ {
		h.Append(i)
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 3, h.Cap())
	assert.Equal(t, []int{5, 6, 7}, h.Tail(3))
	assert.Equal(t, 5, h.At(0))
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory[float64](0)
	assert.Equal(t, DefaultCapacity, h.Cap())
	h.Append(1)
	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Tail(5))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(10)
	r.Append("m1", 1, mgl64.Vec3{1, 0, 0})
	r.Append("m1", 2, mgl64.Vec3{2, 0, 0})
	r.Append("m2", 2, mgl64.Vec3{0, 5, 0})

	assert.Equal(t, 2, r.Len("m1"))
	assert.Equal(t, 0, r.Len("nope"))
	assert.Nil(t, r.Tail("nope", 3))
	assert.Equal(t, []mgl64.Vec3{{1, 0, 0}, {2, 0, 0}}, r.Tail("m1", 5))
	assert.Equal(t, []string{"m1", "m2"}, r.IDs())

	r.Append("m2", 3, mgl64.Vec3{0, 6, 0})
	dropped := r.DropStale(3)
	assert.Equal(t, []string{"m1"}, dropped)
	_, ok := r.Get("m1")
	assert.False(t, ok)

	r.Drop("m2")
	assert.Empty(t, r.IDs())
}
