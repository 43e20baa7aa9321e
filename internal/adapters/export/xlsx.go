// Package export renders standings and player histories as files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/internal/domain/types"
)

const (
	maxSheetName  = 31
	playersSheet  = "Players"
	defaultSheet  = "Sheet1"
	podiumFill    = "#F4E3B1"
	headerFill    = "#DDDDDD"
	standingWidth = 22
)

var standingHeader = []any{"Position", "Rank", "Competitors", "Time", "Date", "Points", "Run ID"} //nolint:gochecknoglobals // header row

var playerHeader = []any{"Player", "Display name", "Total points", "Verified runs"} //nolint:gochecknoglobals // header row

// Workbook builds a workbook with one sheet per board plus a players sheet.
// The caller closes the returned file.
func Workbook(boards []types.Board, players []model.Player) (*excelize.File, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return nil, closeOnError(f, err)
	}
	podium, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{podiumFill}},
	})
	if err != nil {
		return nil, closeOnError(f, err)
	}

	used := make(map[string]bool)
	for _, b := range boards {
		name := sheetName(b, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, closeOnError(f, err)
		}
		if err := writeBoard(f, name, b, header, podium); err != nil {
			return nil, closeOnError(f, err)
		}
	}

	if _, err := f.NewSheet(playersSheet); err != nil {
		return nil, closeOnError(f, err)
	}
	if err := writePlayers(f, players, header); err != nil {
		return nil, closeOnError(f, err)
	}
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, closeOnError(f, err)
	}
	if idx, err := f.GetSheetIndex(playersSheet); err == nil && len(boards) == 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// WriteWorkbook streams the workbook to w.
func WriteWorkbook(w io.Writer, boards []types.Board, players []model.Player) error {
	f, err := Workbook(boards, players)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeBoard(f *excelize.File, sheet string, b types.Board, header, podium int) error {
	if err := writeRow(f, sheet, 1, standingHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
		return err
	}
	for i, s := range b.Standings {
		row := i + 2
		rank := any("")
		if s.Rank != nil {
			rank = *s.Rank
		}
		values := []any{s.Position, rank, strings.Join(s.Competitors, " & "), s.Time, s.Date, s.Points, s.RunID}
		if err := writeRow(f, sheet, row, values); err != nil {
			return err
		}
		if s.Rank != nil {
			if err := f.SetRowStyle(sheet, row, row, podium); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(sheet, "C", "C", standingWidth)
}

func writePlayers(f *excelize.File, players []model.Player, header int) error {
	if err := writeRow(f, playersSheet, 1, playerHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(playersSheet, 1, 1, header); err != nil {
		return err
	}
	for i, p := range players {
		if err := writeRow(f, playersSheet, i+2, []any{p.UID, p.DisplayName, p.TotalPoints, p.TotalRuns}); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// sheetName derives a unique, Excel-safe sheet name from the board's key.
func sheetName(b types.Board, used map[string]bool) string {
	parts := []string{string(b.Key.LeaderboardType), b.Key.Level, b.Key.Category, b.Key.Platform, string(b.Key.RunType)}
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
	if base == "" || strings.EqualFold(base, playersSheet) {
		base = "Board"
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func closeOnError(f *excelize.File, err error) error {
	_ = f.Close()
	return err
}
