// Package export writes the cards visible after a filter pass to an XLSX
// workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/starford/rulebook/internal/cardfilter"
	"github.com/starford/rulebook/internal/models"
)

// Header is the first row of every exported sheet.
var Header = []interface{}{"id", "category", "title", "description", "tags"}

// Row is one exported card.
type Row struct {
	ID          string
	Category    string
	Title       string
	Description string
	Tags        string
}

// Rows returns the visible cards of res in display order as plain text.
// Tags come from page, since a filter pass does not carry them; res.Cards
// lines up with page.Cards by position.
func Rows(page *models.Page, res cardfilter.Result) []Row {
	out := make([]Row, 0, len(res.Cards))
	for i, c := range res.Cards {
		if !c.Visible {
			continue
		}
		var tags string
		if i < len(page.Cards) {
			tags = page.Cards[i].Tags
		}
		out = append(out, Row{
			ID:          c.ID,
			Category:    c.Category,
			Title:       cardfilter.TextContent(c.Title),
			Description: cardfilter.TextContent(c.Description),
			Tags:        tags,
		})
	}
	return out
}

// WriteXLSX writes rows to w as a single-sheet workbook named sheet.
func WriteXLSX(w io.Writer, sheet string, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("export: sheet name: %w", err)
		}
	} else {
		sheet = "Sheet1"
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := sw.SetRow("A1", Header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, []interface{}{r.ID, r.Category, r.Title, r.Description, r.Tags}); err != nil {
			return fmt.Errorf("export: row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
