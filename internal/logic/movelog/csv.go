package movelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{"code", "value"}

// WriteCSV writes l as "code,value" rows preceded by a header row.
func WriteCSV(w io.Writer, l Log) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range l {
		row := []string{
			strconv.Itoa(int(rec.Code)),
			strconv.FormatFloat(rec.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a log written by WriteCSV. The header row is optional.
// Unknown codes are rejected.
func ReadCSV(r io.Reader) (Log, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var out Log
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read move log: %w", err)
		}
		line++
		if line == 1 && strings.EqualFold(row[0], csvHeader[0]) {
			continue
		}

		code, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse code %q: %w", line, row[0], err)
		}
		if !Code(code).Valid() {
			return nil, fmt.Errorf("line %d: %w: %d", line, ErrUnknownCode, code)
		}
		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse value %q: %w", line, row[1], err)
		}
		out = append(out, Record{Code: Code(code), Value: value})
	}
	return out, nil
}
