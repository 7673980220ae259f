// Package listing resolves property names to listing links.
//
// Sources compose: a CSV file or the Postgres listings table provides the
// data, a circuit breaker guards remote sources, and a Redis read-through
// cache sits in front. Every source satisfies similarity.ListingLookup.
package listing

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/aptrec/pkg/errors"
)

// CSV column names.
const (
	ColumnPropertyName = "PropertyName"
	ColumnLink         = "Link"
)

// Record is one listing row.
type Record struct {
	PropertyName string
	Link         string
}

// CSVLookup is an in-memory lookup loaded from a CSV file with a
// PropertyName,Link header. Extra columns are ignored; when a name repeats,
// the first row wins.
type CSVLookup struct {
	links   map[string]string
	records []Record
}

// LoadCSV reads path into a CSVLookup.
func LoadCSV(path string) (*CSVLookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeListingSourceUnavailable, "failed to open listing file").WithDetail(path)
	}
	defer f.Close()
	l, err := ParseCSV(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to load listing file").WithDetail(path)
	}
	return l, nil
}

// ParseCSV reads listing rows from r.
func ParseCSV(r io.Reader) (*CSVLookup, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeListingParse, "listing file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeListingParse, "failed to read listing header")
	}

	nameCol, linkCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnPropertyName:
			nameCol = i
		case ColumnLink:
			linkCol = i
		}
	}
	if nameCol < 0 || linkCol < 0 {
		return nil, errors.New(errors.ErrCodeListingParse, "listing header must contain PropertyName and Link").
			WithDetail(strings.Join(header, ","))
	}

	l := &CSVLookup{links: make(map[string]string)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeListingParse, "failed to read listing row")
		}
		if nameCol >= len(row) || linkCol >= len(row) {
			line, _ := cr.FieldPos(0)
			return nil, errors.New(errors.ErrCodeListingParse, "listing row is missing columns").
				WithDetail("line " + strconv.Itoa(line))
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		if _, dup := l.links[name]; dup {
			continue
		}
		link := strings.TrimSpace(row[linkCol])
		l.links[name] = link
		l.records = append(l.records, Record{PropertyName: name, Link: link})
	}
	return l, nil
}

// Links returns the link of every requested name present in the file.
func (l *CSVLookup) Links(_ context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if link, ok := l.links[n]; ok {
			out[n] = link
		}
	}
	return out, nil
}

// Len is the number of distinct properties.
func (l *CSVLookup) Len() int { return len(l.records) }

// Records returns the rows in file order.
func (l *CSVLookup) Records() []Record { return append([]Record(nil), l.records...) }

//Personal.AI order the ending
