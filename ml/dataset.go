package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Training file column headers.
const (
	ColumnNitrogen    = "N"
	ColumnPhosphorus  = "P"
	ColumnPotassium   = "K"
	ColumnTemperature = "Temperature(C)"
	ColumnHumidity    = "Humidity(%)"
	ColumnPH          = "Soil_pH"
	ColumnMoisture    = "Moisture(%)"
	ColumnCrop        = "Crop"
	ColumnRegion      = "Region"
	ColumnMonth       = "Month"
	ColumnFertilizer  = "Fertilizer"
)

func RequiredColumns() []string {
	return []string{
		ColumnNitrogen,
		ColumnPhosphorus,
		ColumnPotassium,
		ColumnTemperature,
		ColumnHumidity,
		ColumnPH,
		ColumnMoisture,
		ColumnCrop,
		ColumnRegion,
		ColumnMonth,
		ColumnFertilizer,
	}
}

// Example is one labelled training row.
type Example struct {
	Input
	Fertilizer string
}

type Dataset struct {
	Columns  []string
	Examples []Example
}

func LoadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset parses a CSV training file. Extra columns are ignored; a missing
// required column fails before any row is read.
func ReadDataset(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DatasetSchemaError{Missing: RequiredColumns()}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
		if _, dup := index[columns[i]]; !dup {
			index[columns[i]] = i
		}
	}
	var missing []string
	for _, name := range RequiredColumns() {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &DatasetSchemaError{Missing: missing, Present: columns}
	}

	ds := &Dataset{Columns: columns}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		ex, err := parseExample(record, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		ds.Examples = append(ds.Examples, ex)
	}
	if len(ds.Examples) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}

func parseExample(record []string, index map[string]int) (Example, error) {
	var ex Example
	numeric := []struct {
		column string
		dst    *float64
	}{
		{ColumnNitrogen, &ex.Nitrogen},
		{ColumnPhosphorus, &ex.Phosphorus},
		{ColumnPotassium, &ex.Potassium},
		{ColumnTemperature, &ex.Temperature},
		{ColumnHumidity, &ex.Humidity},
		{ColumnPH, &ex.PH},
		{ColumnMoisture, &ex.Moisture},
	}
	for _, n := range numeric {
		raw := strings.TrimSpace(record[index[n.column]])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Example{}, fmt.Errorf("column %s: %q is not a number", n.column, raw)
		}
		*n.dst = v
	}

	text := []struct {
		column string
		dst    *string
	}{
		{ColumnCrop, &ex.Crop},
		{ColumnRegion, &ex.Region},
		{ColumnMonth, &ex.Month},
		{ColumnFertilizer, &ex.Fertilizer},
	}
	for _, t := range text {
		raw := strings.TrimSpace(record[index[t.column]])
		if raw == "" {
			return Example{}, fmt.Errorf("column %s is empty", t.column)
		}
		*t.dst = raw
	}
	return ex, nil
}
