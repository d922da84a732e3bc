package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// PropertyType is the closed set of subject property types.
type PropertyType string

const (
	PropertyTypeHouse     PropertyType = "Casa"
	PropertyTypeApartment PropertyType = "Departamento"
	PropertyTypeRowHouse  PropertyType = "PH"
	PropertyTypeLot       PropertyType = "Lote"
)

// PropertyTypes lists every accepted property type in display order.
var PropertyTypes = []PropertyType{PropertyTypeHouse, PropertyTypeApartment, PropertyTypeRowHouse, PropertyTypeLot}

// TitleType is the kind of ownership document held for the property.
type TitleType string

const (
	TitleTypeDeed              TitleType = "Escritura"
	TitleTypePurchaseAgreement TitleType = "Boleto"
	TitleTypePossession        TitleType = "Posesión"
)

var TitleTypes = []TitleType{TitleTypeDeed, TitleTypePurchaseAgreement, TitleTypePossession}

// Condition is an ordered scale, best first.
type Condition string

const (
	ConditionNew       Condition = "A estrenar"
	ConditionExcellent Condition = "Excelente"
	ConditionVeryGood  Condition = "Muy bueno"
	ConditionGood      Condition = "Bueno"
	ConditionFair      Condition = "Regular"
	ConditionPoor      Condition = "Malo"
)

var Conditions = []Condition{ConditionNew, ConditionExcellent, ConditionVeryGood, ConditionGood, ConditionFair, ConditionPoor}

// LocationQuality is an ordered scale, best first.
type LocationQuality string

const (
	LocationExcellent LocationQuality = "Excelente"
	LocationVeryGood  LocationQuality = "Muy buena"
	LocationGood      LocationQuality = "Buena"
	LocationPoor      LocationQuality = "Mala"
)

var LocationQualities = []LocationQuality{LocationExcellent, LocationVeryGood, LocationGood, LocationPoor}

// Orientation is a compass direction. The empty value means "not set".
type Orientation string

const (
	OrientationNone  Orientation = ""
	OrientationNorth Orientation = "Norte"
	OrientationSouth Orientation = "Sur"
	OrientationEast  Orientation = "Este"
	OrientationWest  Orientation = "Oeste"
)

var Orientations = []Orientation{OrientationNorth, OrientationSouth, OrientationEast, OrientationWest}

// Baseline values used for a new record and for unrecognised enum input.
const (
	DefaultPropertyType    = PropertyTypeHouse
	DefaultTitleType       = TitleTypeDeed
	DefaultCondition       = ConditionGood
	DefaultLocationQuality = LocationGood
	DefaultOrientation     = OrientationNorth
)

// DefaultServiceNames are the utility flags every record starts with, in display order.
var DefaultServiceNames = []string{"luz", "agua", "gas", "cloacas", "pavimento"}

// Services holds named availability flags. Names are open: any name may be stored.
type Services map[string]bool

// DefaultServices returns the baseline flag set with every service off.
func DefaultServices() Services {
	s := make(Services, len(DefaultServiceNames))
	for _, name := range DefaultServiceNames {
		s[name] = false
	}
	return s
}

// Names returns every stored service name: the default names first in their
// canonical order, then any additional names sorted alphabetically.
func (s Services) Names() []string {
	names := make([]string, 0, len(s))
	for _, name := range DefaultServiceNames {
		if _, ok := s[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range s {
		if !slices.Contains(DefaultServiceNames, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Active returns the names of enabled services in the same order as Names.
func (s Services) Active() []string {
	var active []string
	for _, name := range s.Names() {
		if s[name] {
			active = append(active, name)
		}
	}
	return active
}

func (s Services) clone() Services {
	if s == nil {
		return nil
	}
	c := make(Services, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string. Full RFC 3339 timestamps, as stored
// by the persistence API, are accepted too and keep their calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339Nano, s)
		if tsErr != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		t = ts
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AnalysisRecord is one comparative market analysis draft.
type AnalysisRecord struct {
	ClientName  string `json:"clientName"`
	AdvisorName string `json:"advisorName"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`

	Address         string          `json:"address"`
	Neighborhood    string          `json:"neighborhood"`
	Locality        string          `json:"locality"`
	PropertyType    PropertyType    `json:"propertyType"`
	LandArea        float64         `json:"landArea"`
	BuiltArea       float64         `json:"builtArea"`
	HasPlans        bool            `json:"hasPlans"`
	TitleType       TitleType       `json:"titleType"`
	Age             int             `json:"age"`
	Condition       Condition       `json:"condition"`
	LocationQuality LocationQuality `json:"locationQuality"`
	Orientation     Orientation     `json:"orientation"`
	Services        Services        `json:"services"`
	IsRented        bool            `json:"isRented"`
	MainPhoto       PhotoReference  `json:"mainPhoto"`
	Date            Date            `json:"date"`

	Comparables []Comparable `json:"comparables"`

	Observations   string `json:"observations"`
	Considerations string `json:"considerations"`
	Strengths      string `json:"strengths"`
	Weaknesses     string `json:"weaknesses"`
}

// NewAnalysisRecord returns a record with every field at its baseline value,
// dated on the calendar day of now.
func NewAnalysisRecord(now time.Time) *AnalysisRecord {
	return &AnalysisRecord{
		PropertyType:    DefaultPropertyType,
		TitleType:       DefaultTitleType,
		Condition:       DefaultCondition,
		LocationQuality: DefaultLocationQuality,
		Orientation:     DefaultOrientation,
		Services:        DefaultServices(),
		MainPhoto:       NoPhoto(),
		Date:            DateOf(now),
		Comparables:     []Comparable{},
	}
}

// Clone returns a deep copy of the record.
func (r *AnalysisRecord) Clone() *AnalysisRecord {
	c := *r
	c.Services = r.Services.clone()
	c.Comparables = slices.Clone(r.Comparables)
	if c.Comparables == nil {
		c.Comparables = []Comparable{}
	}
	return &c
}

// UnmarshalJSON decodes the wire format. Absent fields keep their baseline
// values, except the date, which stays unset. Unknown enum values fall back to
// their baseline. The legacy mainPhotoUrl and mainPhotoBase64 keys are
// honoured when mainPhoto is absent, and derived comparable fields are
// recomputed from their inputs.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	type plain AnalysisRecord
	*r = *NewAnalysisRecord(time.Time{})
	r.Date = Date{}
	r.Services = nil
	aux := struct {
		*plain
		MainPhotoURL    string `json:"mainPhotoUrl"`
		MainPhotoBase64 string `json:"mainPhotoBase64"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if r.MainPhoto.IsNone() {
		switch {
		case strings.TrimSpace(aux.MainPhotoBase64) != "":
			r.MainPhoto = PhotoFromEmbedded(aux.MainPhotoBase64)
		case strings.TrimSpace(aux.MainPhotoURL) != "":
			r.MainPhoto = PhotoFromURL(aux.MainPhotoURL)
		default:
			r.MainPhoto = NoPhoto()
		}
	}
	r.PropertyType = enumOrDefault(r.PropertyType, PropertyTypes, DefaultPropertyType)
	r.TitleType = enumOrDefault(r.TitleType, TitleTypes, DefaultTitleType)
	r.Condition = enumOrDefault(r.Condition, Conditions, DefaultCondition)
	r.LocationQuality = enumOrDefault(r.LocationQuality, LocationQualities, DefaultLocationQuality)
	if r.Orientation != OrientationNone {
		r.Orientation = enumOrDefault(r.Orientation, Orientations, DefaultOrientation)
	}
	if r.Services == nil {
		r.Services = DefaultServices()
	}
	if r.Comparables == nil {
		r.Comparables = []Comparable{}
	}
	if len(r.Comparables) > MaxComparables {
		return &ValidationError{Field: "comparables", Value: len(r.Comparables), Reason: fmt.Sprintf("exceed the maximum of %d", MaxComparables)}
	}
	return nil
}
