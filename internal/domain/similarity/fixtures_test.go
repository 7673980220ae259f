package similarity

import "testing"

var fixtureIndex = []string{"A", "B", "C", "D"}

func fixtureMatrices() Matrices {
	return Matrices{
		Facilities: Matrix{
			{1, .9, .2, .1},
			{.9, 1, .5, .3},
			{.2, .5, 1, .6},
			{.1, .3, .6, 1},
		},
		Price: Matrix{
			{1, .1, .8, .3},
			{.1, 1, .4, .2},
			{.8, .4, 1, .7},
			{.3, .2, .7, 1},
		},
		Location: Matrix{
			{1, .4, .4, .9},
			{.4, 1, .5, .1},
			{.4, .5, 1, .2},
			{.9, .1, .2, 1},
		},
	}
}

func newFixtureStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load(fixtureMatrices(), fixtureIndex)
	if err != nil {
		t.Fatalf("load fixture store: %v", err)
	}
	return s
}

func names(scored []Scored) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Name
	}
	return out
}
