// internal/spatial/utils.go

package spatial

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateBounds — границы карты не задают площадь.
var ErrDegenerateBounds = errors.New("degenerate map bounds")

// Validate проверяет, что границы пригодны для нормализации по X и Y.
func (b Bounds) Validate() error {
	if b.Max.X <= b.Min.X {
		return fmt.Errorf("%w: x range [%g, %g]", ErrDegenerateBounds, b.Min.X, b.Max.X)
	}
	if b.Max.Y <= b.Min.Y {
		return fmt.Errorf("%w: y range [%g, %g]", ErrDegenerateBounds, b.Min.Y, b.Max.Y)
	}
	return nil
}

// Normalize переводит горизонтальные координаты точки в [0,1]² (без обрезки).
func (b Bounds) Normalize(p Vec3) (u, v float64) {
	u = (p.X - b.Min.X) / (b.Max.X - b.Min.X)
	v = (p.Y - b.Min.Y) / (b.Max.Y - b.Min.Y)
	return u, v
}

// ClampInt ограничивает v диапазоном [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DistanceBetween вычисляет евклидово расстояние.
func DistanceBetween(a, b Vec3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
