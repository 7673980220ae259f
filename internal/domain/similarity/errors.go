package similarity

import (
	"fmt"
	"strings"

	"github.com/turtacn/aptrec/pkg/errors"
)

// ShapeMismatchError reports a matrix that does not line up with the property
// index. Row is -1 when the row count itself is wrong.
type ShapeMismatchError struct {
	Matrix   string
	Row      int
	Got      int
	Expected int
}

func (e *ShapeMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s matrix has %d rows, expected %d", e.Matrix, e.Got, e.Expected)
	}
	return fmt.Sprintf("%s matrix row %d has %d columns, expected %d", e.Matrix, e.Row, e.Got, e.Expected)
}

// DuplicateIndexError reports a name that appears more than once in an index.
type DuplicateIndexError struct {
	Name   string
	First  int
	Second int
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("name %q appears at positions %d and %d", e.Name, e.First, e.Second)
}

// UnknownPropertyError reports a property name absent from the index.
type UnknownPropertyError struct {
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("property %q is not in the index", e.Name)
}

// MissingListingError names every recommended property without a listing link,
// in rank order.
type MissingListingError struct {
	Names []string
}

func (e *MissingListingError) Error() string {
	return fmt.Sprintf("no listing link for %d properties: %s", len(e.Names), strings.Join(e.Names, ", "))
}

// InvalidWeightsError reports a non-finite weight.
type InvalidWeightsError struct {
	Signal Signal
	Value  float64
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("%s weight %v is not finite", e.Signal, e.Value)
}

// InvalidTopNError reports a non-positive result count.
type InvalidTopNError struct {
	TopN int
}

func (e *InvalidTopNError) Error() string {
	return fmt.Sprintf("top_n %d must be at least 1", e.TopN)
}

func shapeMismatch(matrix string, row, got, expected int) error {
	cause := &ShapeMismatchError{Matrix: matrix, Row: row, Got: got, Expected: expected}
	return errors.Wrap(cause, errors.ErrCodeShapeMismatch, "similarity matrices do not match the property index").
		WithDetail(cause.Error())
}

func duplicateIndex(name string, first, second int) error {
	cause := &DuplicateIndexError{Name: name, First: first, Second: second}
	return errors.Wrap(cause, errors.ErrCodeDuplicateIndex, "property index contains duplicate names").
		WithDetail(cause.Error())
}

func unknownProperty(name string) error {
	cause := &UnknownPropertyError{Name: name}
	return errors.Wrap(cause, errors.ErrCodeUnknownProperty, "unknown property").
		WithDetail(name)
}

func missingListing(names []string) error {
	cause := &MissingListingError{Names: names}
	return errors.Wrap(cause, errors.ErrCodeMissingListing, "listing links missing for recommended properties").
		WithDetail(strings.Join(names, ", "))
}

//Personal.AI order the ending
