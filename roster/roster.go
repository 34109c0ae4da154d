// Package roster reads classroom rosters from and writes progress reports to Excel workbooks.
package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"atelier-server-go/game"
	"atelier-server-go/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Sheet1"

// ReadChildNames reads the first sheet of an Excel stream. Row 1 is a header;
// column A of each following row is a child name. Blank names are skipped.
func ReadChildNames(r io.Reader, log zerolog.Logger) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing excel file")
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	names := []string{}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		var name string
		if len(row) > 0 {
			name = strings.TrimSpace(row[0])
		}
		if name == "" {
			log.Debug().Int("row", i+1).Msg("skipping row without a name")
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// WriteReport writes one row per child: name, houses built, distinct
// combinations and whether every combination was built.
func WriteReport(w io.Writer, classroom models.Classroom) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header := []interface{}{"Name", "Houses", "Combinations", "Complete"}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, child := range classroom.Children {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			child.Name,
			len(child.History),
			fmt.Sprintf("%d/%d", game.UniqueCombos(child.History), game.TotalCombos),
			game.IsComplete(child.History),
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row for %s: %w", child.ID, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
