// Package similarity holds the validated similarity store and the weighted
// multi-matrix ranking over it. It performs no I/O and never logs.
package similarity

// Signal names one of the three similarity dimensions.
type Signal string

const (
	SignalFacilities Signal = "facilities"
	SignalPrice      Signal = "price"
	SignalLocation   Signal = "location"
)

// Signals lists the signals in composite order.
var Signals = []Signal{SignalFacilities, SignalPrice, SignalLocation}

func (s Signal) String() string { return string(s) }

// Matrix is a dense square similarity matrix. Entry [i][j] scores property i
// against property j; higher means more similar.
type Matrix [][]float64

// clone deep-copies the matrix.
func (m Matrix) clone() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Matrices bundles the three co-indexed matrices.
type Matrices struct {
	Facilities Matrix
	Price      Matrix
	Location   Matrix
}

// Get returns the matrix for a signal.
func (m Matrices) Get(s Signal) Matrix {
	switch s {
	case SignalFacilities:
		return m.Facilities
	case SignalPrice:
		return m.Price
	case SignalLocation:
		return m.Location
	default:
		return nil
	}
}

//Personal.AI order the ending
