package similarity

import (
	stderrors "errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/aptrec/pkg/errors"
)

func TestRecommend_Scenario(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	got, err := Recommend(s, "A", Weights{1, 1, 1}, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"B", "C"}, names(got))
	assert.Equal(t, 1.4, got[0].Score)
	assert.Equal(t, 1.4, got[1].Score)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, 2, got[1].Position)
}

func TestRecommend_UnknownProperty(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	got, err := Recommend(s, "Z", Weights{1, 1, 1}, 2)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownProperty))

	var unknown *UnknownPropertyError
	require.True(t, stderrors.As(err, &unknown))
	assert.Equal(t, "Z", unknown.Name)
}

func TestRecommend_TopNClampsToOtherProperties(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	for _, topN := range []int{3, 4, 10} {
		got, err := Recommend(s, "A", Weights{1, 1, 1}, topN)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C", "D"}, names(got), "top_n=%d", topN)
		assert.Equal(t, 1.3, got[2].Score)
	}
}

func TestRecommend_InvalidTopN(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	for _, topN := range []int{0, -1} {
		_, err := Recommend(s, "A", DefaultWeights(), topN)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTopN))

		var bad *InvalidTopNError
		require.True(t, stderrors.As(err, &bad))
		assert.Equal(t, topN, bad.TopN)
	}
}

func TestRecommend_NonFiniteWeights(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	tests := []struct {
		name   string
		w      Weights
		signal Signal
	}{
		{"nan facilities", Weights{math.NaN(), 1, 1}, SignalFacilities},
		{"inf price", Weights{1, math.Inf(1), 1}, SignalPrice},
		{"negative inf location", Weights{1, 1, math.Inf(-1)}, SignalLocation},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Recommend(s, "A", tt.w, 2)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidWeights))

			var bad *InvalidWeightsError
			require.True(t, stderrors.As(err, &bad))
			assert.Equal(t, tt.signal, bad.Signal)
		})
	}
}

func TestRecommend_CompositeLinearity(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	m := fixtureMatrices()
	weights := []Weights{
		{1, 1, 1},
		DefaultWeights(),
		{0.3, 1.5, 0},
		{-1, 0.2, 0.7},
	}

	for _, w := range weights {
		for q, query := range fixtureIndex {
			got, err := Recommend(s, query, w, len(fixtureIndex))
			require.NoError(t, err)
			require.Len(t, got, len(fixtureIndex)-1)
			for _, c := range got {
				j := c.Position
				want := w.Facilities*m.Facilities[q][j] + w.Price*m.Price[q][j] + w.Location*m.Location[q][j]
				assert.InDelta(t, want, c.Raw, 1e-12)
				assert.Equal(t, Round(c.Raw, 3), c.Score)
			}
		}
	}
}

func TestRecommend_MatchesCompositeMatrix(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	w := Weights{0.7, -0.4, 1.2}
	full := CompositeMatrix(s, w)

	for q, query := range fixtureIndex {
		got, err := Recommend(s, query, w, 10)
		require.NoError(t, err)
		for _, c := range got {
			assert.Equal(t, full[q][c.Position], c.Raw)
		}
	}
}

func TestRecommend_SelfExclusion(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	weights := []Weights{{1, 1, 1}, {-1, -1, -1}, {0, 0, 0}, {-2, 0.5, -0.1}}
	for _, w := range weights {
		for _, query := range fixtureIndex {
			for topN := 1; topN < len(fixtureIndex); topN++ {
				got, err := Recommend(s, query, w, topN)
				require.NoError(t, err)
				assert.NotContains(t, names(got), query)
				assert.Len(t, got, topN)
			}
		}
	}
}

func TestRecommend_NegativeWeightsStillExcludeSelf(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	got, err := Recommend(s, "A", Weights{-1, -1, -1}, 3)
	require.NoError(t, err)
	// Composite row is [-3, -1.4, -1.4, -1.3]: the diagonal sorts last but is
	// still dropped, and the order is D, B, C.
	assert.Equal(t, []string{"D", "B", "C"}, names(got))
	assert.Equal(t, -1.3, got[0].Score)
}

func TestRecommend_Determinism(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	first, err := Recommend(s, "C", DefaultWeights(), 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Recommend(s, "C", DefaultWeights(), 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRecommend_TieBreakByIndex(t *testing.T) {
	t.Parallel()

	flat := Matrix{
		{1, .5, .25, .5, .25},
		{.5, 1, 0, 0, 0},
		{.25, 0, 1, 0, 0},
		{.5, 0, 0, 1, 0},
		{.25, 0, 0, 0, 1},
	}
	zero := Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	}
	s, err := Load(Matrices{Facilities: flat, Price: zero, Location: zero}, []string{"q", "p1", "p2", "p3", "p4"})
	require.NoError(t, err)

	got, err := Recommend(s, "q", Weights{1, 1, 1}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3", "p2", "p4"}, names(got))
}

func TestRecommend_MonotonicTruncation(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	w := Weights{0.2, 1.1, 0.6}
	for _, query := range fixtureIndex {
		for k := 1; k+1 <= len(fixtureIndex)-1; k++ {
			short, err := Recommend(s, query, w, k)
			require.NoError(t, err)
			long, err := Recommend(s, query, w, k+1)
			require.NoError(t, err)
			assert.Equal(t, short, long[:k])
		}
	}
}

func TestRecommend_ZeroWeightDropsSignal(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	m := fixtureMatrices()
	got, err := Recommend(s, "B", Weights{0.5, 0, 1}, 3)
	require.NoError(t, err)

	for _, c := range got {
		want := 0.5*m.Facilities[1][c.Position] + m.Location[1][c.Position]
		assert.InDelta(t, want, c.Raw, 1e-12)
	}

	without, err := Load(Matrices{
		Facilities: m.Facilities,
		Price:      Matrix{{9, 9, 9, 9}, {9, 9, 9, 9}, {9, 9, 9, 9}, {9, 9, 9, 9}},
		Location:   m.Location,
	}, fixtureIndex)
	require.NoError(t, err)
	other, err := Recommend(without, "B", Weights{0.5, 0, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, got, other)
}

func TestRound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.235, Round(1.23456, 3))
	assert.Equal(t, -1.235, Round(-1.23456, 3))
	assert.Equal(t, 1.4, Round(1.4000000000000001, 3))
	assert.Equal(t, 2.35, Round(2.349, 2))
}

func TestCompositeMatrix_Scenario(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	full := CompositeMatrix(s, Weights{1, 1, 1})
	want := []float64{3, 1.4, 1.4, 1.3}
	for j, v := range want {
		assert.InDelta(t, v, full[0][j], 1e-9)
	}
}

func TestRecommend_ConcurrentCallersMatchSerial(t *testing.T) {
	t.Parallel()

	s := newFixtureStore(t)
	weights := []Weights{
		{1, 1, 1},
		{1, 0, 0},
		{0, 2.5, 0.5},
		{0.1, 0.2, 0.3},
		{-1, 1, 0},
		DefaultWeights(),
	}
	queries := s.Names()

	type call struct {
		query string
		w     Weights
		topN  int
	}
	var calls []call
	for _, q := range queries {
		for _, w := range weights {
			for topN := 1; topN <= s.Size(); topN++ {
				calls = append(calls, call{q, w, topN})
			}
		}
	}

	want := make([][]Scored, len(calls))
	for i, c := range calls {
		got, err := Recommend(s, c.query, c.w, c.topN)
		require.NoError(t, err)
		want[i] = got
	}

	const workers = 16
	got := make([][][]Scored, workers)
	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			out := make([][]Scored, len(calls))
			// Each worker walks the calls from a different offset so they interleave.
			for k := range calls {
				i := (k + g*7) % len(calls)
				res, err := Recommend(s, calls[i].query, calls[i].w, calls[i].topN)
				if err != nil {
					t.Errorf("worker %d call %d: %v", g, i, err)
					return
				}
				out[i] = res
			}
			got[g] = out
		}(g)
	}
	wg.Wait()

	for g := range got {
		assert.Equal(t, want, got[g], "worker %d", g)
	}
	// The store is read-only under concurrent use.
	after, err := Recommend(s, "A", Weights{1, 1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, names(after))
	assert.Equal(t, 1.4, after[0].Score)
}
