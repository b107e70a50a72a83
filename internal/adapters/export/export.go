// Package export renders arrangements as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

// ContentType of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	SeatingSheet = "Seating"
	GroupsSheet  = "Groups"
)

// SeatingHeader lists the seating sheet columns.
var SeatingHeader = []string{"Group", "Table", "Seat", "Number", "Name", "Age", "Gender"}

// GroupsHeader lists the group summary columns.
var GroupsHeader = []string{"Group", "Table", "Members", "Capacity", "Score", "Warnings"}

// XLSX renders arr as a workbook with one seating row per participant and one
// summary row per group. Participants missing from roster keep their number only.
func XLSX(arr model.Arrangement, roster model.Roster) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SeatingSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(GroupsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, SeatingSheet, 1, toAny(SeatingHeader), style); err != nil {
		return nil, err
	}
	if err := writeRow(f, GroupsSheet, 1, toAny(GroupsHeader), style); err != nil {
		return nil, err
	}

	row := 2
	for gi, g := range arr.Groups {
		for seat, n := range g.Participants {
			p, ok := roster[n]
			values := []any{g.Number, g.Table, seat + 1, n, "", "", ""}
			if ok {
				values[4], values[5], values[6] = p.Name, p.Age, p.Gender
			}
			if err := writeRow(f, SeatingSheet, row, values, 0); err != nil {
				return nil, err
			}
			row++
		}

		codes := make([]string, len(g.Warnings))
		for i, w := range g.Warnings {
			codes[i] = w.Code
		}
		summary := []any{g.Number, g.Table, len(g.Participants), g.Capacity, g.AggregateScore, strings.Join(codes, ", ")}
		if err := writeRow(f, GroupsSheet, gi+2, summary, 0); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(SeatingSheet, "E", "E", 24); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(GroupsSheet, "F", "F", 40); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(SeatingSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return fmt.Errorf("set cell style %s: %w", cell, err)
			}
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
