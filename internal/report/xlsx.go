package report

import (
	"fmt"
	"io"

	"acmreport/server/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	subjectSheet     = "Subject"
	comparablesSheet = "Comparables"
)

var comparableHeaders = []string{
	"#", "Built area (m²)", "Price", "Price per m²", "Coefficient",
	"Days published", "Listing", "Description",
}

// RenderXLSX writes a workbook with the subject property on one sheet and the
// comparables with their averages on another.
func RenderXLSX(record *models.AnalysisRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", subjectSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(comparablesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	decimal, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	subject := append([]Line{
		{"Client", record.ClientName},
		{"Advisor", record.AdvisorName},
		{"Report date", record.Date.String()},
	}, subjectLines(record)...)
	subject = append(subject, Line{"Services", ServicesSummary(record.Services)})
	for i, l := range subject {
		row := i + 1
		if err := f.SetSheetRow(subjectSheet, cell(1, row), &[]interface{}{l.Label, orPlaceholder(l.Value)}); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(subjectSheet, "A1", cell(1, len(subject)), bold); err != nil {
		return err
	}
	if err := f.SetColWidth(subjectSheet, "A", "B", 24); err != nil {
		return err
	}

	header := make([]interface{}, len(comparableHeaders))
	for i, h := range comparableHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(comparablesSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(comparablesSheet, "A1", cell(len(comparableHeaders), 1), bold); err != nil {
		return err
	}

	for i, c := range record.Comparables {
		row := i + 2
		values := []interface{}{
			i + 1, c.BuiltArea, c.Price, c.PricePerM2, c.Coefficient,
			c.DaysPublished, c.ListingURL, c.Description,
		}
		if err := f.SetSheetRow(comparablesSheet, cell(1, row), &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(comparablesSheet, cell(4, row), cell(5, row), decimal); err != nil {
			return err
		}
	}

	agg := ComputeAggregates(record.Comparables)
	row := len(record.Comparables) + 3
	for _, a := range []struct {
		label string
		avg   Average
	}{
		{"Average price", agg.AveragePrice},
		{"Average price per m²", agg.AveragePricePerArea},
	} {
		if err := f.SetCellValue(comparablesSheet, cell(1, row), a.label); err != nil {
			return err
		}
		var value interface{} = a.avg.String()
		if a.avg.Available {
			value = a.avg.Value
		}
		if err := f.SetCellValue(comparablesSheet, cell(3, row), value); err != nil {
			return err
		}
		if err := f.SetCellStyle(comparablesSheet, cell(1, row), cell(1, row), bold); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(comparablesSheet, "B", "H", 16); err != nil {
		return err
	}

	return f.Write(w)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
