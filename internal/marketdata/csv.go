package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"quant-lab/internal/model"
)

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV parses date,open,high,low,close,volume rows. The header line is optional
// and dates use YYYY-MM-DD.
func ReadCSV(r io.Reader) (model.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	var points []model.PricePoint
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
		}
		if line == 1 && strings.EqualFold(record[0], csvHeader[0]) {
			continue
		}
		p, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrInvalidArgument, line, err)
		}
		points = append(points, p)
	}
	return model.NewSeries(points)
}

func parseRecord(record []string) (model.PricePoint, error) {
	date, err := time.Parse(time.DateOnly, record[0])
	if err != nil {
		return model.PricePoint{}, err
	}
	values := make([]float64, len(record)-1)
	for i, field := range record[1:] {
		if values[i], err = strconv.ParseFloat(field, 64); err != nil {
			return model.PricePoint{}, fmt.Errorf("column %s: %w", csvHeader[i+1], err)
		}
	}
	return model.PricePoint{
		Date:   date,
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// WriteCSV writes series with a header line.
func WriteCSV(w io.Writer, series model.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range series {
		err := cw.Write([]string{
			p.Date.Format(time.DateOnly),
			formatF(p.Open), formatF(p.High), formatF(p.Low), formatF(p.Close), formatF(p.Volume),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// CSVDir serves <dir>/<SYMBOL>.csv files.
type CSVDir struct {
	dir string
}

func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

func (d *CSVDir) Load(ctx context.Context, symbol string, start, end time.Time) (model.Series, error) {
	symbol = NormalizeSymbol(symbol)
	if err := validateRange(symbol, start, end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, err := LoadCSVFile(filepath.Join(d.dir, symbol+".csv"))
	if err != nil {
		return nil, err
	}

	filtered := series[:0:0]
	for _, p := range series {
		if inRange(p.Date, start, end) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s in range", model.ErrInsufficientData, symbol)
	}
	return filtered, nil
}

// LoadCSVFile reads a whole bar file.
func LoadCSVFile(path string) (model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no data file %s", model.ErrInsufficientData, path)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
