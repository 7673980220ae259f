package similarity

import (
	"context"

	"github.com/turtacn/aptrec/pkg/errors"
)

// ListingLookup resolves property names to their external listing links.
// Names without a link are simply absent from the returned map; an error is
// reserved for the lookup itself failing.
type ListingLookup interface {
	Links(ctx context.Context, names []string) (map[string]string, error)
}

// Recommendation is one decorated result row.
type Recommendation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Link  string  `json:"link"`
}

// Assemble joins ranked candidates with their listing links, preserving rank.
// If any candidate has no link, Assemble fails with a single
// MissingListingError naming all of them rather than returning a short list.
func Assemble(ctx context.Context, ranked []Scored, lookup ListingLookup) ([]Recommendation, error) {
	if len(ranked) == 0 {
		return []Recommendation{}, nil
	}
	names := make([]string, len(ranked))
	for i, c := range ranked {
		names[i] = c.Name
	}

	links, err := lookup.Links(ctx, names)
	if err != nil {
		code := errors.GetCode(err)
		if code == errors.CodeUnknown {
			code = errors.ErrCodeListingSourceUnavailable
		}
		return nil, errors.Wrap(err, code, "listing lookup failed")
	}

	out := make([]Recommendation, 0, len(ranked))
	var missing []string
	for _, c := range ranked {
		link, ok := links[c.Name]
		if !ok || link == "" {
			missing = append(missing, c.Name)
			continue
		}
		out = append(out, Recommendation{Name: c.Name, Score: c.Score, Link: link})
	}
	if len(missing) > 0 {
		return nil, missingListing(missing)
	}
	return out, nil
}

// StaticLookup is an in-memory ListingLookup.
type StaticLookup map[string]string

// Links implements ListingLookup.
func (m StaticLookup) Links(_ context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if link, ok := m[n]; ok {
			out[n] = link
		}
	}
	return out, nil
}

//Personal.AI order the ending
