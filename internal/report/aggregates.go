package report

import (
	"encoding/json"
	"fmt"

	"acmreport/server/internal/models"
)

// Average is a mean that may be unavailable. An unavailable average is
// distinct from a zero one and encodes as JSON null.
type Average struct {
	Value     float64
	Available bool
}

func available(v float64) Average {
	return Average{Value: v, Available: true}
}

// String formats the average with two decimals, or N/A.
func (a Average) String() string {
	if !a.Available {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", a.Value)
}

func (a Average) MarshalJSON() ([]byte, error) {
	if !a.Available {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value)
}

func (a *Average) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*a = Average{}
		return nil
	}
	*a = available(*v)
	return nil
}

// Aggregates are the summary statistics printed under the comparables.
type Aggregates struct {
	AveragePrice        Average `json:"averagePrice"`
	AveragePricePerArea Average `json:"averagePricePerArea"`
}

// ComputeAggregates averages the comparables. The price average only counts
// comparables with a positive price, while the per-area average counts every
// comparable, so one without a built area contributes zero to it.
func ComputeAggregates(comparables []models.Comparable) Aggregates {
	var agg Aggregates

	var priceSum float64
	priced := 0
	for _, c := range comparables {
		if c.Price > 0 {
			priceSum += c.Price
			priced++
		}
	}
	if priced > 0 {
		agg.AveragePrice = available(priceSum / float64(priced))
	}

	if len(comparables) > 0 {
		var perAreaSum float64
		for _, c := range comparables {
			perAreaSum += c.PricePerM2
		}
		agg.AveragePricePerArea = available(perAreaSum / float64(len(comparables)))
	}

	return agg
}
