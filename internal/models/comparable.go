package models

import (
	"encoding/json"
)

const (
	// MaxComparables caps the comparison set.
	MaxComparables = 4

	MinCoefficient     = 0.1
	MaxCoefficient     = 1.0
	DefaultCoefficient = 1.0
)

// Comparable is one listing the subject property is priced against.
// PricePerM2 is derived from Price and BuiltArea and is never set directly.
type Comparable struct {
	BuiltArea     float64        `json:"builtArea"`
	Price         float64        `json:"price"`
	ListingURL    string         `json:"listingUrl"`
	Description   string         `json:"description"`
	DaysPublished int            `json:"daysPublished"`
	PricePerM2    float64        `json:"pricePerM2"`
	Coefficient   float64        `json:"coefficient"`
	Photo         PhotoReference `json:"photo"`
}

// NewComparable returns a comparable at its baseline values.
func NewComparable() Comparable {
	return Comparable{
		Coefficient: DefaultCoefficient,
		Photo:       NoPhoto(),
	}
}

// ComputePricePerM2 returns price / builtArea, or 0 when the area is not positive.
func ComputePricePerM2(price, builtArea float64) float64 {
	if builtArea > 0 {
		return price / builtArea
	}
	return 0
}

func (c *Comparable) recomputePricePerM2() {
	c.PricePerM2 = ComputePricePerM2(c.Price, c.BuiltArea)
}

// CoefficientInRange reports whether v is an acceptable correction coefficient.
func CoefficientInRange(v float64) bool {
	return v >= MinCoefficient && v <= MaxCoefficient
}

// UnmarshalJSON applies baseline values for missing keys, rejects an
// out-of-range coefficient and recomputes the derived price per area.
func (c *Comparable) UnmarshalJSON(data []byte) error {
	type plain Comparable
	decoded := plain(NewComparable())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if !CoefficientInRange(decoded.Coefficient) {
		return &ValidationError{Field: "coefficient", Value: decoded.Coefficient, Reason: "out of range"}
	}
	*c = Comparable(decoded)
	c.recomputePricePerM2()
	return nil
}
