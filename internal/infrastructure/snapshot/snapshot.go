// Package snapshot loads, validates and serves similarity snapshots.
//
// A snapshot is a set of JSON documents: the property index, one square
// matrix per similarity signal and an optional landmark distance table.
// Documents are read from a local directory or an object-storage prefix and
// compiled into a Serving value that is swapped in atomically.
package snapshot

import (
	"strings"
	"time"

	"github.com/turtacn/aptrec/internal/domain/landmark"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/pkg/errors"
)

// Object names inside a snapshot directory or prefix.
const (
	IndexFile      = "index.json"
	FacilitiesFile = "facilities.json"
	PriceFile      = "price.json"
	LocationFile   = "location.json"
	LandmarksFile  = "landmarks.json"
)

// RequiredFiles are the documents every snapshot must contain.
var RequiredFiles = []string{IndexFile, FacilitiesFile, PriceFile, LocationFile}

// LandmarkData is the wire form of a landmark distance table.
type LandmarkData struct {
	Properties []string    `json:"properties"`
	Landmarks  []string    `json:"landmarks"`
	Metres     [][]float64 `json:"metres"`
}

// Snapshot is an undecoded-to-domain view of one published data set.
type Snapshot struct {
	Index     []string
	Matrices  similarity.Matrices
	Landmarks *LandmarkData
	Source    string
}

// Serving is a validated snapshot ready to answer queries.
type Serving struct {
	Store       *similarity.Store
	Landmarks   *landmark.Table
	Source      string
	InstalledAt time.Time
}

// Compile validates s and builds its query structures. A snapshot that fails
// here must never replace the serving one.
func (s *Snapshot) Compile() (*Serving, error) {
	store, err := similarity.Load(s.Matrices, s.Index)
	if err != nil {
		return nil, err
	}
	out := &Serving{Store: store, Source: s.Source, InstalledAt: time.Now().UTC()}
	if s.Landmarks != nil {
		tbl, err := landmark.NewTable(s.Landmarks.Properties, s.Landmarks.Landmarks, s.Landmarks.Metres)
		if err != nil {
			return nil, err
		}
		if err := crossCheck(store, tbl); err != nil {
			return nil, err
		}
		out.Landmarks = tbl
	}
	return out, nil
}

// crossCheck rejects a landmark table naming properties the index lacks, so
// every nearby result can be fed back into a recommendation query.
func crossCheck(store *similarity.Store, tbl *landmark.Table) error {
	var missing []string
	for _, name := range tbl.Properties() {
		if !store.Contains(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeShapeMismatch, "landmark table lists properties missing from the index").
		WithDetail(strings.Join(missing, ", "))
}

//Personal.AI order the ending
