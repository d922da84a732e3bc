package models

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SetField updates one top-level field by its wire name. Numeric input that
// cannot be parsed, or is negative or not finite, is stored as zero; unknown
// enum values fall back to the baseline value. Neither case is an error.
func (r *AnalysisRecord) SetField(name string, value any) error {
	switch name {
	case "clientName":
		r.ClientName = toString(value)
	case "advisorName":
		r.AdvisorName = toString(value)
	case "phone":
		r.Phone = toString(value)
	case "email":
		r.Email = toString(value)
	case "address":
		r.Address = toString(value)
	case "neighborhood":
		r.Neighborhood = toString(value)
	case "locality":
		r.Locality = toString(value)
	case "propertyType":
		r.PropertyType = enumOrDefault(PropertyType(toString(value)), PropertyTypes, DefaultPropertyType)
	case "landArea":
		r.LandArea = toFloat(value)
	case "builtArea":
		r.BuiltArea = toFloat(value)
	case "hasPlans":
		r.HasPlans = toBool(value)
	case "titleType":
		r.TitleType = enumOrDefault(TitleType(toString(value)), TitleTypes, DefaultTitleType)
	case "age":
		r.Age = toInt(value)
	case "condition":
		r.Condition = enumOrDefault(Condition(toString(value)), Conditions, DefaultCondition)
	case "locationQuality":
		r.LocationQuality = enumOrDefault(LocationQuality(toString(value)), LocationQualities, DefaultLocationQuality)
	case "orientation":
		o := Orientation(strings.TrimSpace(toString(value)))
		if o != OrientationNone {
			o = enumOrDefault(o, Orientations, DefaultOrientation)
		}
		r.Orientation = o
	case "isRented":
		r.IsRented = toBool(value)
	case "mainPhoto":
		r.MainPhoto = toPhoto(value)
	case "mainPhotoUrl":
		r.MainPhoto = PhotoFromURL(toString(value))
	case "mainPhotoBase64":
		r.MainPhoto = PhotoFromEmbedded(toString(value))
	case "date":
		r.Date = toDate(value)
	case "observations":
		r.Observations = toString(value)
	case "considerations":
		r.Considerations = toString(value)
	case "strengths":
		r.Strengths = toString(value)
	case "weaknesses":
		r.Weaknesses = toString(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// ToggleService flips the named availability flag and returns its new state.
// Names not seen before are added.
func (r *AnalysisRecord) ToggleService(name string) bool {
	if r.Services == nil {
		r.Services = DefaultServices()
	}
	r.Services[name] = !r.Services[name]
	return r.Services[name]
}

// AddComparable appends a baseline comparable unless the list is full, and
// returns the resulting length. A full list is left untouched.
func (r *AnalysisRecord) AddComparable() int {
	if len(r.Comparables) < MaxComparables {
		r.Comparables = append(r.Comparables, NewComparable())
	}
	return len(r.Comparables)
}

// RemoveComparable deletes the comparable at index, keeping the order of the
// rest. It reports whether anything was removed; an out-of-range index is a no-op.
func (r *AnalysisRecord) RemoveComparable(index int) bool {
	if index < 0 || index >= len(r.Comparables) {
		return false
	}
	r.Comparables = slices.Delete(r.Comparables, index, index+1)
	return true
}

// UpdateComparableField updates one field of the comparable at index. An
// out-of-range coefficient is rejected with a ValidationError and leaves the
// previous value in place. Updating price or builtArea recomputes PricePerM2
// before returning.
func (r *AnalysisRecord) UpdateComparableField(index int, field string, value any) error {
	if index < 0 || index >= len(r.Comparables) {
		return fmt.Errorf("%w: index %d", ErrComparableNotFound, index)
	}
	c := &r.Comparables[index]

	switch field {
	case "builtArea":
		c.BuiltArea = toFloat(value)
		c.recomputePricePerM2()
	case "price":
		c.Price = toFloat(value)
		c.recomputePricePerM2()
	case "listingUrl":
		c.ListingURL = toString(value)
	case "description":
		c.Description = toString(value)
	case "daysPublished":
		c.DaysPublished = toInt(value)
	case "coefficient":
		v := toFloat(value)
		if !CoefficientInRange(v) {
			return &ValidationError{Field: "coefficient", Value: value, Reason: "out of range"}
		}
		c.Coefficient = v
	case "photo":
		c.Photo = toPhoto(value)
	case "pricePerM2":
		return fmt.Errorf("%w: %q", ErrDerivedField, field)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// IsReadyForSubmission reports whether every required field is filled in.
func (r *AnalysisRecord) IsReadyForSubmission() bool {
	return len(r.MissingFields()) == 0
}

// MissingFields lists the wire names of required fields that are still blank,
// in form order.
func (r *AnalysisRecord) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"clientName", r.ClientName},
		{"advisorName", r.AdvisorName},
		{"phone", r.Phone},
		{"email", r.Email},
		{"address", r.Address},
		{"neighborhood", r.Neighborhood},
		{"locality", r.Locality},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if r.Date.IsZero() {
		missing = append(missing, "date")
	}
	return missing
}

func enumOrDefault[T ~string](v T, allowed []T, def T) T {
	if slices.Contains(allowed, v) {
		return v
	}
	return def
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(value any) float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// toInt treats values beyond the int32 range like any other unusable number.
func toInt(value any) int {
	f := math.Trunc(toFloat(value))
	if f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "on") {
			return true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case nil:
		return false
	default:
		return toFloat(v) != 0
	}
}

func toDate(value any) Date {
	switch v := value.(type) {
	case Date:
		return v
	case time.Time:
		return DateOf(v)
	case string:
		d, err := ParseDate(v)
		if err != nil {
			return Date{}
		}
		return d
	default:
		return Date{}
	}
}

func toPhoto(value any) PhotoReference {
	switch v := value.(type) {
	case PhotoReference:
		if v.IsNone() {
			return NoPhoto()
		}
		return v
	case string:
		return ParsePhotoReference(v)
	case map[string]any:
		kind, _ := v["kind"].(string)
		val, _ := v["value"].(string)
		switch PhotoKind(kind) {
		case PhotoKindURL:
			return PhotoFromURL(val)
		case PhotoKindEmbedded:
			return PhotoFromEmbedded(val)
		}
		return NoPhoto()
	default:
		return NoPhoto()
	}
}
