package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/smukkama/air-quality-server/internal/series"
)

// ErrInvalidHeader is returned when a CSV export lacks the Fecha, Hora or Valor column
var ErrInvalidHeader = errors.New("csv header must contain Fecha, Hora and Valor columns")

// CSVParser reads single-pollutant monitoring exports with Fecha, Hora and Valor columns.
// Header names match case-insensitively and other columns are ignored. An empty or NaN
// Valor is a missing reading. Rows whose Valor is not a number are skipped.
type CSVParser struct {
	// Comma is the field delimiter, ',' when zero
	Comma rune
}

// Result is the outcome of parsing one file
type Result struct {
	Readings []series.Reading
	Skipped  int
}

// Parse reads every data row of r
func (p CSVParser) Parse(r io.Reader) (Result, error) {
	var res Result

	cr := csv.NewReader(r)
	if p.Comma != 0 {
		cr.Comma = p.Comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return res, ErrInvalidHeader
	}
	if err != nil {
		return res, fmt.Errorf("failed to read header: %w", err)
	}
	fecha, hora, valor, err := columns(header)
	if err != nil {
		return res, err
	}
	width := max(fecha, hora, valor) + 1

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read row: %w", err)
		}
		if len(row) < width {
			res.Skipped++
			continue
		}

		value, ok := parseValue(row[valor])
		if !ok {
			res.Skipped++
			continue
		}
		res.Readings = append(res.Readings, series.Reading{
			Key:   series.NewKey(row[fecha], row[hora]),
			Value: value,
		})
	}
	return res, nil
}

// ParseFile opens and parses one export
func (p CSVParser) ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	res, err := p.Parse(f)
	if err != nil {
		return res, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return res, nil
}

func columns(header []string) (fecha, hora, valor int, err error) {
	fecha, hora, valor = -1, -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case "fecha":
			fecha = i
		case "hora":
			hora = i
		case "valor":
			valor = i
		}
	}
	if fecha < 0 || hora < 0 || valor < 0 {
		return 0, 0, 0, ErrInvalidHeader
	}
	return fecha, hora, valor, nil
}

// parseValue returns nil for a missing or non-finite value and ok=false for garbage
func parseValue(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, true
	}
	return &v, true
}
