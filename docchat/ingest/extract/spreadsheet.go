package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetExtractor reads the active sheet of an xlsx workbook; other sheets are ignored.
type SpreadsheetExtractor struct{}

func (SpreadsheetExtractor) Extract(ctx context.Context, raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", newError(KindMalformedInput, TypeSpreadsheet, fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return "", newError(KindMalformedInput, TypeSpreadsheet, errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", newError(KindMalformedInput, TypeSpreadsheet, fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rows = dataRows(rows)
	if len(rows) < 2 {
		return "", newError(KindMalformedInput, TypeSpreadsheet, fmt.Errorf("sheet %q has no data rows", sheet))
	}
	return renderTable(rows), nil
}
