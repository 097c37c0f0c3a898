package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// CSVExtractor renders delimited rows as a table, header row first.
type CSVExtractor struct{}

func (CSVExtractor) Extract(ctx context.Context, raw []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", newError(KindMalformedInput, TypeCSV, fmt.Errorf("parse row %d: %w", len(rows)+1, err))
		}
		rows = append(rows, rec)
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
	}

	rows = dataRows(rows)
	if len(rows) < 2 {
		return "", newError(KindMalformedInput, TypeCSV, errors.New("no data rows"))
	}
	return renderTable(rows), nil
}
