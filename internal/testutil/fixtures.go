package testutil

import (
	"testing"

	"github.com/turtacn/aptrec/internal/domain/landmark"
	"github.com/turtacn/aptrec/internal/domain/similarity"
)

// FixtureIndex is the four-property index used across package tests.
var FixtureIndex = []string{"A", "B", "C", "D"}

// FixtureMatrices returns symmetric matrices whose first rows are
// F=[1,.9,.2,.1], P=[1,.1,.8,.3], L=[1,.4,.4,.9]. Querying "A" with unit
// weights yields the composite row [3, 1.4, 1.4, 1.3].
func FixtureMatrices() similarity.Matrices {
	return similarity.Matrices{
		Facilities: similarity.Matrix{
			{1, .9, .2, .1},
			{.9, 1, .5, .3},
			{.2, .5, 1, .6},
			{.1, .3, .6, 1},
		},
		Price: similarity.Matrix{
			{1, .1, .8, .3},
			{.1, 1, .4, .2},
			{.8, .4, 1, .7},
			{.3, .2, .7, 1},
		},
		Location: similarity.Matrix{
			{1, .4, .4, .9},
			{.4, 1, .5, .1},
			{.4, .5, 1, .2},
			{.9, .1, .2, 1},
		},
	}
}

// FixtureLandmarkNames are the columns of FixtureLandmarkMetres.
var FixtureLandmarkNames = []string{"Airport", "Central Station"}

// FixtureLandmarkMetres is a 4×2 distance table in metres, rows in
// FixtureIndex order.
var FixtureLandmarkMetres = [][]float64{
	{12000, 900},
	{3500, 4200},
	{48000, 3500},
	{3500, 15000},
}

// FixtureStore loads the fixture into a similarity.Store.
func FixtureStore(t testing.TB) *similarity.Store {
	t.Helper()
	s, err := similarity.Load(FixtureMatrices(), FixtureIndex)
	if err != nil {
		t.Fatalf("testutil: load fixture store: %v", err)
	}
	return s
}

// FixtureLandmarks builds the fixture distance table.
func FixtureLandmarks(t testing.TB) *landmark.Table {
	t.Helper()
	tbl, err := landmark.NewTable(FixtureIndex, FixtureLandmarkNames, FixtureLandmarkMetres)
	if err != nil {
		t.Fatalf("testutil: build fixture landmarks: %v", err)
	}
	return tbl
}

// FixtureListings returns a link for every fixture property.
func FixtureListings() similarity.StaticLookup {
	return similarity.StaticLookup{
		"A": "https://listings.example/a",
		"B": "https://listings.example/b",
		"C": "https://listings.example/c",
		"D": "https://listings.example/d",
	}
}

//Personal.AI order the ending
