package spatial

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	pts := []Vec3{{X: 0, Y: 0, Z: 0}, {X: 10, Y: 0, Z: 3}, {X: 5, Y: 9, Z: 0}}
	c := Mean(pts)
	assert.InDelta(t, 5.0, c.X, 1e-9)
	assert.InDelta(t, 3.0, c.Y, 1e-9)
	assert.InDelta(t, 1.0, c.Z, 1e-9)

	assert.Equal(t, Vec3{}, Mean(nil))
}

func TestDistanceBetween(t *testing.T) {
	assert.InDelta(t, 5.0, DistanceBetween(Vec3{}, Vec3{X: 3, Y: 4}), 1e-9)
	assert.InDelta(t, 13.0, DistanceBetween(Vec3{X: 1, Y: 1, Z: 1}, Vec3{X: 1, Y: 6, Z: 13}), 1e-9)
}

func TestMaxDistance(t *testing.T) {
	pts := []Vec3{{X: 1}, {X: -4}, {Y: 2}}
	assert.InDelta(t, 4.0, MaxDistance(Vec3{}, pts), 1e-9)
	assert.Equal(t, 0.0, MaxDistance(Vec3{}, nil))
}

func TestBoundsValidate(t *testing.T) {
	ok := Bounds{Min: Vec3{X: -100, Y: -100}, Max: Vec3{X: 100, Y: 100}}
	assert.NoError(t, ok.Validate())

	flatX := Bounds{Min: Vec3{X: 5, Y: 0}, Max: Vec3{X: 5, Y: 10}}
	assert.True(t, errors.Is(flatX.Validate(), ErrDegenerateBounds))

	flatY := Bounds{Min: Vec3{X: 0, Y: 3}, Max: Vec3{X: 10, Y: 3}}
	assert.True(t, errors.Is(flatY.Validate(), ErrDegenerateBounds))

	inverted := Bounds{Min: Vec3{X: 10, Y: 0}, Max: Vec3{X: 0, Y: 10}}
	assert.Error(t, inverted.Validate())
}

func TestNormalizeAndClamp(t *testing.T) {
	b := Bounds{Min: Vec3{X: -100, Y: 0}, Max: Vec3{X: 100, Y: 50}}
	u, v := b.Normalize(Vec3{X: 0, Y: 50})
	assert.InDelta(t, 0.5, u, 1e-9)
	assert.InDelta(t, 1.0, v, 1e-9)

	assert.Equal(t, 9, ClampInt(12, 0, 9))
	assert.Equal(t, 0, ClampInt(-3, 0, 9))
}

func TestVecOps(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 2}
	assert.InDelta(t, 3.0, v.Length(), 1e-9)
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 4}, v.Scale(2))
	assert.Equal(t, Vec3{}, v.Sub(v))
	assert.True(t, Vec3{}.IsZero())
	assert.False(t, v.IsZero())
}
