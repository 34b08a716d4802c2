// internal/heatmap/grid.go

// Package heatmap накапливает позиции гибелей в двумерной сетке фиксированного разрешения.
package heatmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"hotspot-core/internal/spatial"
)

// MinDecayFactor — нижняя граница множителя затухания за один вызов.
const MinDecayFactor = 0.05

// ErrInvalidGrid — недопустимые параметры сетки.
var ErrInvalidGrid = errors.New("invalid heat grid")

// Grid — матрица resolution×resolution. Строки соответствуют оси X, столбцы — оси Y.
type Grid struct {
	cells      [][]float64
	resolution int
	bounds     spatial.Bounds
	decayRate  float64 // доля в минуту
}

// NewGrid создаёт сетку. Вырожденные границы отклоняются, а не исправляются.
func NewGrid(resolution int, bounds spatial.Bounds, decayRatePerMinute float64) (*Grid, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("%w: resolution %d", ErrInvalidGrid, resolution)
	}
	if decayRatePerMinute < 0 || math.IsNaN(decayRatePerMinute) {
		return nil, fmt.Errorf("%w: decay rate %g", ErrInvalidGrid, decayRatePerMinute)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	cells := make([][]float64, resolution)
	for i := range cells {
		cells[i] = make([]float64, resolution)
	}
	return &Grid{
		cells:      cells,
		resolution: resolution,
		bounds:     bounds,
		decayRate:  decayRatePerMinute,
	}, nil
}

// Resolution возвращает размер стороны сетки.
func (g *Grid) Resolution() int {
	return g.resolution
}

// CellFor возвращает индекс ячейки для позиции.
func (g *Grid) CellFor(p spatial.Vec3) (row, col int) {
	u, v := g.bounds.Normalize(p)
	scale := float64(g.resolution - 1)
	row = spatial.ClampInt(int(math.Round(u*scale)), 0, g.resolution-1)
	col = spatial.ClampInt(int(math.Round(v*scale)), 0, g.resolution-1)
	return row, col
}

// Rasterize увеличивает ячейку позиции на 1 и возвращает её индекс.
func (g *Grid) Rasterize(p spatial.Vec3) (row, col int) {
	row, col = g.CellFor(p)
	g.cells[row][col]++
	return row, col
}

// DecayAll умножает все ячейки на DecayFactor. elapsedMinutes <= 0 — ничего не делает.
func (g *Grid) DecayAll(elapsedMinutes float64) {
	if elapsedMinutes <= 0 {
		return
	}
	k := DecayFactor(g.decayRate, elapsedMinutes)
	for _, row := range g.cells {
		for j := range row {
			row[j] *= k
		}
	}
}

// DecayFactor — max(0.05, 1 - rate*elapsed). Один вызов не обнуляет значение.
func DecayFactor(ratePerMinute, elapsedMinutes float64) float64 {
	if elapsedMinutes <= 0 {
		return 1
	}
	return math.Max(MinDecayFactor, 1-ratePerMinute*elapsedMinutes)
}

// Value возвращает значение ячейки.
func (g *Grid) Value(row, col int) float64 {
	return g.cells[row][col]
}

// Total — сумма всех ячеек.
func (g *Grid) Total() float64 {
	sum := 0.0
	for _, row := range g.cells {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

// Snapshot возвращает глубокую копию матрицы.
func (g *Grid) Snapshot() Snapshot {
	out := make([][]float64, g.resolution)
	for i, row := range g.cells {
		out[i] = append([]float64(nil), row...)
	}
	return Snapshot(out)
}

// Snapshot — копия матрицы, безопасная для передачи наружу.
type Snapshot [][]float64

// Max возвращает максимальное значение ячейки.
func (s Snapshot) Max() float64 {
	m := 0.0
	for _, row := range s {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}
	return m
}

// MarshalJSON сериализует снимок в виде {"heatmap": [[...]]}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	cells := [][]float64(s)
	if cells == nil {
		cells = [][]float64{}
	}
	return json.Marshal(map[string]interface{}{"heatmap": cells})
}

// UnmarshalJSON читает форму {"heatmap": [[...]]}.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Heatmap [][]float64 `json:"heatmap"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	*s = Snapshot(wrapper.Heatmap)
	return nil
}
