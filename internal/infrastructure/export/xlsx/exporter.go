package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const (
	sheetName   = "Reports"
	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{
	"Date", "Title", "Grade", "Allergic", "Allergens Matched", "Allergens",
	"Possible Allergens", "Ingredients", "Explanation", "Image URL",
}

// Exporter writes a caller's report history as a single-sheet workbook.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string   { return contentType }
func (e *Exporter) FileExtension() string { return ".xlsx" }

func (e *Exporter) Export(w io.Writer, reports []domain.Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, report := range reports {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			report.CreatedAt.UTC().Format(time.RFC3339),
			report.Title,
			report.Record.Grade,
			yesNo(report.Record.IsAllergic),
			strings.Join(report.Record.AllergensMatched, ", "),
			strings.Join(report.Record.Allergens, ", "),
			strings.Join(report.Record.PossibleAllergens, ", "),
			strings.Join(report.Record.Ingredients, ", "),
			report.Explanation,
			report.ImageURL,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write report %s: %w", report.ID, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 28); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}
	if err := f.SetColWidth(sheetName, "H", "I", 60); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
