package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"acmreport/server/internal/models"
	"acmreport/server/internal/photos"
)

// Default download names for the rendered artifacts.
const (
	DefaultFilename            = "acm-report.pdf"
	DefaultSpreadsheetFilename = "acm-comparables.xlsx"
)

// Layout of an A4 portrait page, in millimetres.
const (
	PageWidth     = 210.0
	PageHeight    = 297.0
	Margin        = 15.0
	ContentWidth  = PageWidth - 2*Margin
	PageCapacity  = PageHeight - 2*Margin
	LineHeight    = 6.0
	BlockPadding  = 4.0
	HeadingHeight = 12.0
	TitleHeight   = 16.0
	PhotoHeight   = 60.0
)

// Placeholder is printed for any empty value.
const Placeholder = "-"

var ErrMissingAddress = errors.New("record has no subject property address")

type BlockKind string

const (
	BlockTitle      BlockKind = "title"
	BlockHeading    BlockKind = "heading"
	BlockFields     BlockKind = "fields"
	BlockPhoto      BlockKind = "photo"
	BlockComparable BlockKind = "comparable"
	BlockAggregates BlockKind = "aggregates"
	BlockNarrative  BlockKind = "narrative"
)

// Line is one labelled value inside a block.
type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Block is an indivisible piece of layout. Top is its offset from the top
// margin of the page it was placed on.
type Block struct {
	Kind   BlockKind             `json:"kind"`
	Title  string                `json:"title,omitempty"`
	Lines  []Line                `json:"lines,omitempty"`
	Text   string                `json:"text,omitempty"`
	Photo  *photos.EmbeddedPhoto `json:"-"`
	Top    float64               `json:"top"`
	Height float64               `json:"height"`
}

func (b Block) HasPhoto() bool {
	return b.Photo != nil
}

type Page struct {
	Number int     `json:"number"`
	Blocks []Block `json:"blocks"`
}

// Document is a compiled report ready to be rendered.
type Document struct {
	Title      string     `json:"title"`
	Date       string     `json:"date"`
	Pages      []Page     `json:"pages"`
	Aggregates Aggregates `json:"aggregates"`
}

// Compile lays out the record as pages of blocks. Photos missing from
// resolved are left out of the report. The record must have an address.
func Compile(record *models.AnalysisRecord, resolved photos.Set) (*Document, error) {
	if record == nil || strings.TrimSpace(record.Address) == "" {
		return nil, ErrMissingAddress
	}

	doc := &Document{
		Title:      "Comparative Market Analysis",
		Date:       record.Date.String(),
		Aggregates: ComputeAggregates(record.Comparables),
	}
	p := &paginator{}

	// Subject property
	p.section()
	p.place(newBlock(BlockTitle, doc.Title, nil, ""))
	p.place(newBlock(BlockFields, "Identification", []Line{
		{"Client", record.ClientName},
		{"Advisor", record.AdvisorName},
		{"Phone", record.Phone},
		{"Email", record.Email},
		{"Report date", record.Date.String()},
	}, ""))
	p.place(newBlock(BlockFields, "Subject property", subjectLines(record), ""))
	p.place(newBlock(BlockFields, "Services", []Line{
		{"Available", ServicesSummary(record.Services)},
	}, ""))
	if photo, ok := resolved.Lookup(record.MainPhoto); ok {
		b := newBlock(BlockPhoto, "Main photo", nil, "")
		b.withPhoto(photo)
		p.place(b)
	}

	// Comparables
	p.section()
	p.place(newBlock(BlockHeading, "Comparable properties", nil, ""))
	for i, c := range record.Comparables {
		b := newBlock(BlockComparable, fmt.Sprintf("Comparable %d", i+1), comparableLines(c), "")
		if photo, ok := resolved.Lookup(c.Photo); ok {
			b.withPhoto(photo)
		}
		p.place(b)
	}
	p.place(newBlock(BlockAggregates, "Summary", []Line{
		{"Average price", doc.Aggregates.AveragePrice.String()},
		{"Average price per m²", doc.Aggregates.AveragePricePerArea.String()},
	}, ""))

	// Narrative
	p.section()
	p.place(newBlock(BlockHeading, "Analysis", nil, ""))
	for _, n := range []struct{ title, text string }{
		{"Observations", record.Observations},
		{"Considerations", record.Considerations},
		{"Strengths", record.Strengths},
		{"Weaknesses", record.Weaknesses},
	} {
		p.place(newBlock(BlockNarrative, n.title, nil, orPlaceholder(n.text)))
	}

	doc.Pages = p.pages
	return doc, nil
}

// ServicesSummary joins the active service names, or returns "None".
func ServicesSummary(s models.Services) string {
	active := s.Active()
	if len(active) == 0 {
		return "None"
	}
	return strings.Join(active, ", ")
}

func subjectLines(r *models.AnalysisRecord) []Line {
	orientation := string(r.Orientation)
	return []Line{
		{"Address", r.Address},
		{"Neighborhood", r.Neighborhood},
		{"Locality", r.Locality},
		{"Property type", string(r.PropertyType)},
		{"Land area (m²)", formatNumber(r.LandArea)},
		{"Built area (m²)", formatNumber(r.BuiltArea)},
		{"Plans", yesNo(r.HasPlans)},
		{"Title", string(r.TitleType)},
		{"Age (years)", strconv.Itoa(r.Age)},
		{"Condition", string(r.Condition)},
		{"Location", string(r.LocationQuality)},
		{"Orientation", orientation},
		{"Rented", yesNo(r.IsRented)},
	}
}

func comparableLines(c models.Comparable) []Line {
	return []Line{
		{"Built area (m²)", formatNumber(c.BuiltArea)},
		{"Price", formatNumber(c.Price)},
		{"Price per m²", fmt.Sprintf("%.2f", c.PricePerM2)},
		{"Days published", strconv.Itoa(c.DaysPublished)},
		{"Coefficient", fmt.Sprintf("%.2f", c.Coefficient)},
		{"Listing", c.ListingURL},
		{"Description", c.Description},
	}
}

func newBlock(kind BlockKind, title string, lines []Line, text string) Block {
	for i := range lines {
		lines[i].Value = orPlaceholder(lines[i].Value)
	}
	b := Block{Kind: kind, Title: title, Lines: lines, Text: text}
	b.Height = measure(b)
	return b
}

func (b *Block) withPhoto(photo *photos.EmbeddedPhoto) {
	b.Photo = photo
	b.Height = measure(*b)
}

// measure computes the vertical space a block needs from the number of lines
// its text wraps to when printed.
func measure(b Block) float64 {
	switch b.Kind {
	case BlockTitle:
		return TitleHeight
	case BlockHeading:
		return HeadingHeight
	}

	lines := 0
	if b.Title != "" {
		lines++
	}
	for _, l := range b.Lines {
		lines += bodyText().lines(l.Label + ": " + l.Value)
	}
	if b.Text != "" {
		lines += bodyText().lines(b.Text)
	}

	h := BlockPadding + float64(lines)*LineHeight
	if b.Photo != nil {
		h += PhotoHeight + BlockPadding
	}
	return h
}

// paginator places blocks top to bottom, opening a new page whenever the next
// block would not fit. A block that is taller than a whole page still goes on
// an empty page of its own.
type paginator struct {
	pages  []Page
	cursor float64
}

func (p *paginator) newPage() {
	p.pages = append(p.pages, Page{Number: len(p.pages) + 1})
	p.cursor = 0
}

func (p *paginator) current() *Page {
	return &p.pages[len(p.pages)-1]
}

// section starts a new page unless the current one is still empty.
func (p *paginator) section() {
	if len(p.pages) == 0 || len(p.current().Blocks) > 0 {
		p.newPage()
	}
}

func (p *paginator) place(b Block) {
	if len(p.pages) == 0 {
		p.newPage()
	}
	if p.cursor+b.Height > PageCapacity && len(p.current().Blocks) > 0 {
		p.newPage()
	}
	b.Top = p.cursor
	page := p.current()
	page.Blocks = append(page.Blocks, b)
	p.cursor += b.Height
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
