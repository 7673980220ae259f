package similarity

import (
	"math"
	"sort"

	"github.com/turtacn/aptrec/pkg/errors"
)

// ScoreDecimals is the precision of reported scores.
const ScoreDecimals = 3

// Scored is one ranked candidate. Raw is the unrounded composite used for
// ordering; Score is Raw rounded to ScoreDecimals for display.
type Scored struct {
	Position int
	Name     string
	Raw      float64
	Score    float64
}

// Recommend ranks every other property in the store by its composite
// similarity to query and returns at most topN of them.
//
// The composite for candidate j is
//
//	w.Facilities*F[q][j] + w.Price*P[q][j] + w.Location*L[q][j]
//
// The query's own position is removed before ranking, whatever its score.
// Candidates are sorted by Raw descending with a stable sort, so equal scores
// keep index order. A topN at or above N-1 returns every other property.
func Recommend(s *Store, query string, w Weights, topN int) ([]Scored, error) {
	idx, err := s.PositionOf(query)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if topN < 1 {
		cause := &InvalidTopNError{TopN: topN}
		return nil, errors.Wrap(cause, errors.ErrCodeInvalidTopN, "top_n must be a positive integer").
			WithDetail(cause.Error())
	}

	row := compositeRow(s, idx, w)

	candidates := make([]Scored, 0, len(row)-1)
	for j, v := range row {
		if j == idx {
			continue
		}
		candidates = append(candidates, Scored{Position: j, Name: s.names[j], Raw: v})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Raw > candidates[b].Raw
	})

	if topN < len(candidates) {
		candidates = candidates[:topN]
	}
	for i := range candidates {
		candidates[i].Score = Round(candidates[i].Raw, ScoreDecimals)
	}
	return candidates, nil
}

// CompositeMatrix forms the full weighted matrix w1*S1 + w2*S2 + w3*S3.
// Row i equals the composite row Recommend computes for property i.
func CompositeMatrix(s *Store, w Weights) Matrix {
	out := make(Matrix, s.Size())
	for i := range out {
		out[i] = compositeRow(s, i, w)
	}
	return out
}

func compositeRow(s *Store, i int, w Weights) []float64 {
	f := s.matrices.Facilities[i]
	p := s.matrices.Price[i]
	l := s.matrices.Location[i]
	row := make([]float64, len(f))
	for j := range row {
		row[j] = w.Facilities*f[j] + w.Price*p[j] + w.Location*l[j]
	}
	return row
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

//Personal.AI order the ending
