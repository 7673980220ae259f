package snapshot

import (
	"github.com/goccy/go-json"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/pkg/errors"
)

// Decode builds a Snapshot from raw documents keyed by file name.
// LandmarksFile is optional; every name in RequiredFiles must be present.
func Decode(docs map[string][]byte, source string) (*Snapshot, error) {
	for _, name := range RequiredFiles {
		if _, ok := docs[name]; !ok {
			return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot document missing").
				WithDetail(source + ": " + name)
		}
	}

	s := &Snapshot{Source: source}
	if err := decodeInto(docs, IndexFile, source, &s.Index); err != nil {
		return nil, err
	}
	if err := decodeInto(docs, FacilitiesFile, source, &s.Matrices.Facilities); err != nil {
		return nil, err
	}
	if err := decodeInto(docs, PriceFile, source, &s.Matrices.Price); err != nil {
		return nil, err
	}
	if err := decodeInto(docs, LocationFile, source, &s.Matrices.Location); err != nil {
		return nil, err
	}
	if _, ok := docs[LandmarksFile]; ok {
		s.Landmarks = &LandmarkData{}
		if err := decodeInto(docs, LandmarksFile, source, s.Landmarks); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func decodeInto(docs map[string][]byte, name, source string, v interface{}) error {
	if err := json.Unmarshal(docs[name], v); err != nil {
		return errors.Wrap(err, errors.ErrCodeSnapshotDecode, "failed to decode snapshot document").
			WithDetail(source + ": " + name)
	}
	return nil
}

// Encode renders s as documents keyed by file name.
func Encode(s *Snapshot) (map[string][]byte, error) {
	parts := []struct {
		name string
		v    interface{}
	}{
		{IndexFile, s.Index},
		{FacilitiesFile, s.Matrices.Get(similarity.SignalFacilities)},
		{PriceFile, s.Matrices.Get(similarity.SignalPrice)},
		{LocationFile, s.Matrices.Get(similarity.SignalLocation)},
	}
	if s.Landmarks != nil {
		parts = append(parts, struct {
			name string
			v    interface{}
		}{LandmarksFile, s.Landmarks})
	}

	docs := make(map[string][]byte, len(parts))
	for _, p := range parts {
		b, err := json.Marshal(p.v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode snapshot document").WithDetail(p.name)
		}
		docs[p.name] = b
	}
	return docs, nil
}

//Personal.AI order the ending
