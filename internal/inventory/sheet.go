package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName       = "Count"
	headerRow       = 6
	colItemCode     = "Item Code"
	colCountedQty   = "Counted Qty"
	colNote         = "Note"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var sheetColumns = []string{
	colItemCode, "Name", "Category", "Unit", "System Qty", colCountedQty, "Variance", "Unit Cost", "Variance Value", colNote,
}

type sheetMeta struct {
	Title        string
	BusinessUnit string
	Location     string
	Status       models.CountStatus
}

// ExportCount writes a count session as a spreadsheet.
func (s *Service) ExportCount(ctx context.Context, actor models.Actor, id string) (*bytes.Buffer, string, error) {
	cs, err := s.loadCount(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	buf, err := writeCountSheet(sheetMeta{
		Title:        "Physical Count " + cs.ID,
		BusinessUnit: cs.BusinessUnit,
		Location:     cs.Location,
		Status:       cs.Status,
	}, cs.Items)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("physical-count-%s.xlsx", cs.ID), nil
}

// ExportSpotCheck writes a spot check as a spreadsheet.
func (s *Service) ExportSpotCheck(ctx context.Context, actor models.Actor, id string) (*bytes.Buffer, string, error) {
	sc, err := s.loadSpotCheck(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	buf, err := writeCountSheet(sheetMeta{
		Title:        "Spot Check " + sc.ID,
		BusinessUnit: sc.BusinessUnit,
		Location:     sc.Location,
		Status:       sc.Status,
	}, sc.Items)
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("spot-check-%s.xlsx", sc.ID), nil
}

func writeCountSheet(meta sheetMeta, items []models.CountItem) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	cells := map[string]any{
		"A1": meta.Title,
		"A2": "Business Unit", "B2": meta.BusinessUnit,
		"A3": "Location", "B3": meta.Location,
		"A4": "Status", "B4": string(meta.Status),
	}
	for cell, v := range cells {
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	for i, name := range sheetColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return nil, err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(sheetColumns), headerRow)
	if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return nil, err
	}

	for r, it := range items {
		row := []any{
			it.ItemCode, it.Name, it.Category, it.Unit, it.SystemQty.InexactFloat64(), nil, nil,
			it.UnitCost.InexactFloat64(), nil, it.Note,
		}
		if it.Counted() {
			row[5] = it.CountedQty.InexactFloat64()
			row[6] = it.Variance().InexactFloat64()
			row[8] = it.VarianceValue().InexactFloat64()
		}
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+r)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 14); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 32); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

type sheetCount struct {
	Qty  decimal.Decimal
	Note string
}

// readCountSheet reads item codes and counted quantities from the first
// sheet. The header row is located by its "Item Code" and "Counted Qty"
// cells; rows with an empty counted cell are skipped.
func readCountSheet(r io.Reader) (map[string]sheetCount, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: spreadsheet could not be read", ErrValidation)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet could not be read", ErrValidation)
	}

	codeCol, qtyCol, noteCol, start := -1, -1, -1, -1
	for i, row := range rows {
		for j, cell := range row {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case strings.ToLower(colItemCode):
				codeCol = j
			case strings.ToLower(colCountedQty):
				qtyCol = j
			case strings.ToLower(colNote):
				noteCol = j
			}
		}
		if codeCol >= 0 && qtyCol >= 0 {
			start = i + 1
			break
		}
		codeCol, qtyCol, noteCol = -1, -1, -1
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: header with %q and %q not found", ErrValidation, colItemCode, colCountedQty)
	}

	out := make(map[string]sheetCount)
	for _, row := range rows[start:] {
		if codeCol >= len(row) || qtyCol >= len(row) {
			continue
		}
		code := strings.TrimSpace(row[codeCol])
		raw := strings.TrimSpace(row[qtyCol])
		if code == "" || raw == "" {
			continue
		}
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: counted quantity %q for %s is not a number", ErrValidation, raw, code)
		}
		sc := sheetCount{Qty: qty}
		if noteCol >= 0 && noteCol < len(row) {
			sc.Note = strings.TrimSpace(row[noteCol])
		}
		out[code] = sc
	}
	return out, nil
}

type ImportResult struct {
	Updated   int        `json:"updated"`
	Unmatched []string   `json:"unmatched"`
	Count     *CountView `json:"count,omitempty"`
}

// ImportCount applies a filled-in count sheet to a session.
func (s *Service) ImportCount(ctx context.Context, actor models.Actor, id string, r io.Reader) (ImportResult, error) {
	counts, err := readCountSheet(r)
	if err != nil {
		return ImportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.openCount(ctx, actor, id)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Unmatched: []string{}}
	now := s.now()
	for code, c := range counts {
		err := recordItem(cs.Items, code, c.Qty, c.Note, now)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, ErrNotFound):
			res.Unmatched = append(res.Unmatched, code)
		default:
			return ImportResult{}, fmt.Errorf("item %s: %w", code, err)
		}
	}
	sort.Strings(res.Unmatched)
	if res.Updated == 0 {
		return ImportResult{}, fmt.Errorf("%w: no counted item matched the session", ErrValidation)
	}
	if err := s.repo.SaveCount(ctx, cs); err != nil {
		return ImportResult{}, err
	}

	view := countView(cs)
	res.Count = &view
	s.logger.Info("count sheet imported",
		zap.String("session_id", cs.ID),
		zap.Int("updated", res.Updated),
		zap.Int("unmatched", len(res.Unmatched)),
	)
	return res, nil
}
