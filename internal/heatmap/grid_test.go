package heatmap

import (
	"encoding/json"
	"errors"
	"testing"

	"hotspot-core/internal/spatial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = spatial.Bounds{
	Min: spatial.Vec3{X: 0, Y: 0},
	Max: spatial.Vec3{X: 100, Y: 100},
}

func TestNewGridRejectsBadInput(t *testing.T) {
	_, err := NewGrid(0, testBounds, 0.1)
	assert.True(t, errors.Is(err, ErrInvalidGrid))

	_, err = NewGrid(10, testBounds, -1)
	assert.True(t, errors.Is(err, ErrInvalidGrid))

	flat := spatial.Bounds{Min: spatial.Vec3{X: 5, Y: 0}, Max: spatial.Vec3{X: 5, Y: 100}}
	_, err = NewGrid(10, flat, 0.1)
	assert.True(t, errors.Is(err, spatial.ErrDegenerateBounds))
}

func TestRasterizeIncrementsOneCell(t *testing.T) {
	g, err := NewGrid(11, testBounds, 0.1)
	require.NoError(t, err)

	row, col := g.Rasterize(spatial.Vec3{X: 50, Y: 20, Z: 999})
	assert.Equal(t, 5, row)
	assert.Equal(t, 2, col)
	assert.Equal(t, 1.0, g.Value(row, col))
	assert.Equal(t, 1.0, g.Total())
}

func TestRasterizeClampsOutOfBounds(t *testing.T) {
	g, err := NewGrid(4, testBounds, 0.1)
	require.NoError(t, err)

	row, col := g.Rasterize(spatial.Vec3{X: -500, Y: 1e6})
	assert.Equal(t, 0, row)
	assert.Equal(t, 3, col)
}

func TestRasterizeRoundsToNearest(t *testing.T) {
	g, err := NewGrid(11, testBounds, 0.1)
	require.NoError(t, err)

	// 0.46*10 = 4.6 -> 5, 0.44*10 = 4.4 -> 4
	row, col := g.Rasterize(spatial.Vec3{X: 46, Y: 44})
	assert.Equal(t, 5, row)
	assert.Equal(t, 4, col)
}

func TestSingleCellGrid(t *testing.T) {
	g, err := NewGrid(1, testBounds, 0.1)
	require.NoError(t, err)
	row, col := g.Rasterize(spatial.Vec3{X: 73, Y: 12})
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
}

func TestDecayZeroIsNoop(t *testing.T) {
	g, err := NewGrid(5, testBounds, 0.5)
	require.NoError(t, err)
	g.Rasterize(spatial.Vec3{X: 10, Y: 10})
	before := g.Snapshot()

	g.DecayAll(0)
	assert.Equal(t, before, g.Snapshot())
}

func TestDecayMonotonic(t *testing.T) {
	g, err := NewGrid(5, testBounds, 0.1)
	require.NoError(t, err)
	g.Rasterize(spatial.Vec3{X: 10, Y: 10})
	g.Rasterize(spatial.Vec3{X: 90, Y: 90})
	g.Rasterize(spatial.Vec3{X: 90, Y: 90})

	for i := 0; i < 50; i++ {
		before := g.Snapshot()
		g.DecayAll(3)
		after := g.Snapshot()
		for r := range before {
			for c := range before[r] {
				if before[r][c] > 0 {
					assert.Less(t, after[r][c], before[r][c])
				}
				assert.GreaterOrEqual(t, after[r][c], 0.0)
			}
		}
	}
}

func TestDecayFactorFloor(t *testing.T) {
	assert.InDelta(t, 0.9, DecayFactor(0.1, 1), 1e-12)
	assert.Equal(t, MinDecayFactor, DecayFactor(0.1, 1000))
	assert.Equal(t, 1.0, DecayFactor(0.1, 0))

	g, err := NewGrid(2, testBounds, 1)
	require.NoError(t, err)
	g.Rasterize(spatial.Vec3{})
	g.DecayAll(60)
	assert.InDelta(t, MinDecayFactor, g.Value(0, 0), 1e-12)
}

func TestSnapshotIsCopy(t *testing.T) {
	g, err := NewGrid(3, testBounds, 0.1)
	require.NoError(t, err)
	snap := g.Snapshot()
	snap[0][0] = 42
	assert.Equal(t, 0.0, g.Value(0, 0))
}

func TestSnapshotJSON(t *testing.T) {
	g, err := NewGrid(2, testBounds, 0.1)
	require.NoError(t, err)
	g.Rasterize(spatial.Vec3{X: 100, Y: 0})

	data, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"heatmap": [[0,0],[1,0]]}`, string(data))

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 1.0, back[1][0])
	assert.Equal(t, 1.0, back.Max())
}
