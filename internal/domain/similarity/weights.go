package similarity

import (
	"math"

	"github.com/turtacn/aptrec/pkg/errors"
)

// Default blend weights, matching the recommender's original slider defaults.
const (
	DefaultFacilitiesWeight = 0.5
	DefaultPriceWeight      = 0.8
	DefaultLocationWeight   = 1.0
)

// Weights are relative emphasis multipliers for the three signals. They need
// not sum to 1; a negative weight inverts that signal's contribution.
type Weights struct {
	Facilities float64 `json:"facilities"`
	Price      float64 `json:"price"`
	Location   float64 `json:"location"`
}

// DefaultWeights returns the default blend.
func DefaultWeights() Weights {
	return Weights{
		Facilities: DefaultFacilitiesWeight,
		Price:      DefaultPriceWeight,
		Location:   DefaultLocationWeight,
	}
}

// Of returns the weight for a signal.
func (w Weights) Of(s Signal) float64 {
	switch s {
	case SignalFacilities:
		return w.Facilities
	case SignalPrice:
		return w.Price
	case SignalLocation:
		return w.Location
	default:
		return 0
	}
}

// Validate rejects NaN and infinite weights. Finiteness is the only check.
func (w Weights) Validate() error {
	for _, sig := range Signals {
		v := w.Of(sig)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			cause := &InvalidWeightsError{Signal: sig, Value: v}
			return errors.Wrap(cause, errors.ErrCodeInvalidWeights, "weights must be finite numbers").
				WithDetail(cause.Error())
		}
	}
	return nil
}

//Personal.AI order the ending
