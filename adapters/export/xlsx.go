package export

import (
	"context"

	"github.com/xuri/excelize/v2"

	"emgreach/domain/emg"
	"emgreach/domain/session"
	apperrors "emgreach/internal/errors"
)

const (
	sessionSheet     = "Session"
	calibrationSheet = "Calibration"
)

// XLSXSink writes a workbook per session: the record log on one sheet and the
// calibration profile on another.
type XLSXSink struct {
	dir string
}

// NewXLSXSink creates an XLSX sink writing into dir
func NewXLSXSink(dir string) *XLSXSink {
	return &XLSXSink{dir: dir}
}

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Save(ctx context.Context, export *session.Export) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := outputPath(s.dir, export, ".xlsx")
	if err != nil {
		return "", err
	}
	if err := writeXLSX(path, export); err != nil {
		return "", apperrors.PersistenceFailure(s.Name(), err)
	}
	return path, nil
}

func writeXLSX(path string, export *session.Export) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sessionSheet); err != nil {
		return err
	}

	for i, h := range headerOf(export) {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sessionSheet, cell, h); err != nil {
			return err
		}
	}
	for r, rec := range export.Records {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		values := rec.Values()
		if err := f.SetSheetRow(sessionSheet, cell, &values); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(calibrationSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(calibrationSheet, "A1", &[]interface{}{"Channel", "Noise Level", "Max Contraction"}); err != nil {
		return err
	}
	for _, c := range emg.Channels() {
		cell, _ := excelize.CoordinatesToCellName(1, int(c)+2)
		if err := f.SetSheetRow(calibrationSheet, cell, &[]interface{}{c.String(), export.Noise[c], export.Max[c]}); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
