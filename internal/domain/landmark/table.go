// Package landmark answers "which properties lie within r km of a landmark"
// over a precomputed property×landmark distance table.
package landmark

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/pkg/errors"
)

const (
	DefaultRadiusKM  = 5.0
	MaxRadiusKM      = 50.0
	distanceDecimals = 2
)

// UnknownLandmarkError reports a landmark absent from the table.
type UnknownLandmarkError struct {
	Name string
}

func (e *UnknownLandmarkError) Error() string {
	return fmt.Sprintf("landmark %q is not in the distance table", e.Name)
}

// InvalidRadiusError reports a radius that is not a positive finite number
// no larger than the configured maximum.
type InvalidRadiusError struct {
	RadiusKM float64
	MaxKM    float64
}

func (e *InvalidRadiusError) Error() string {
	return fmt.Sprintf("radius %v km must be in (0, %v]", e.RadiusKM, e.MaxKM)
}

// NearbyProperty is a property within the search radius.
type NearbyProperty struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance_km"`
}

// Table is an immutable distance table: rows are properties, columns are
// landmarks, values are metres.
type Table struct {
	properties []string
	landmarks  []string
	column     map[string]int
	metres     [][]float64
}

// NewTable validates and copies a distance table. Every row must have one
// value per landmark and neither axis may repeat a name.
func NewTable(properties, landmarks []string, metres [][]float64) (*Table, error) {
	if len(metres) != len(properties) {
		return nil, shapeError(-1, len(metres), len(properties))
	}
	for i, row := range metres {
		if len(row) != len(landmarks) {
			return nil, shapeError(i, len(row), len(landmarks))
		}
	}
	if err := checkUnique(properties); err != nil {
		return nil, err
	}
	if err := checkUnique(landmarks); err != nil {
		return nil, err
	}

	column := make(map[string]int, len(landmarks))
	for j, name := range landmarks {
		column[name] = j
	}
	rows := make([][]float64, len(metres))
	for i, row := range metres {
		rows[i] = append([]float64(nil), row...)
	}
	return &Table{
		properties: append([]string(nil), properties...),
		landmarks:  append([]string(nil), landmarks...),
		column:     column,
		metres:     rows,
	}, nil
}

// Landmarks returns the landmark names sorted for display.
func (t *Table) Landmarks() []string {
	out := append([]string(nil), t.landmarks...)
	sort.Strings(out)
	return out
}

// Properties returns the row names in table order.
func (t *Table) Properties() []string { return append([]string(nil), t.properties...) }

// Nearby returns properties strictly closer than radiusKM to landmark,
// nearest first. Equal distances keep table order. maxKM <= 0 disables the
// upper bound.
func (t *Table) Nearby(landmark string, radiusKM, maxKM float64) ([]NearbyProperty, error) {
	col, ok := t.column[landmark]
	if !ok {
		cause := &UnknownLandmarkError{Name: landmark}
		return nil, errors.Wrap(cause, errors.ErrCodeUnknownLandmark, "unknown landmark").WithDetail(landmark)
	}
	if math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) || radiusKM <= 0 || (maxKM > 0 && radiusKM > maxKM) {
		cause := &InvalidRadiusError{RadiusKM: radiusKM, MaxKM: maxKM}
		return nil, errors.Wrap(cause, errors.ErrCodeInvalidRadius, "radius must be a positive number of kilometres").
			WithDetail(cause.Error())
	}

	limit := radiusKM * 1000
	type hit struct {
		row    int
		metres float64
	}
	var hits []hit
	for i, row := range t.metres {
		if d := row[col]; d < limit {
			hits = append(hits, hit{row: i, metres: d})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].metres < hits[b].metres })

	out := make([]NearbyProperty, len(hits))
	for i, h := range hits {
		out[i] = NearbyProperty{
			Name:       t.properties[h.row],
			DistanceKM: similarity.Round(h.metres/1000, distanceDecimals),
		}
	}
	return out, nil
}

func shapeError(row, got, expected int) error {
	cause := &similarity.ShapeMismatchError{Matrix: "landmark distance", Row: row, Got: got, Expected: expected}
	return errors.Wrap(cause, errors.ErrCodeShapeMismatch, "landmark distance table is not rectangular").
		WithDetail(cause.Error())
}

func checkUnique(names []string) error {
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if first, dup := seen[n]; dup {
			cause := &similarity.DuplicateIndexError{Name: n, First: first, Second: i}
			return errors.Wrap(cause, errors.ErrCodeDuplicateIndex, "distance table contains duplicate names").
				WithDetail(cause.Error())
		}
		seen[n] = i
	}
	return nil
}

//Personal.AI order the ending
