package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mathiasfls/attrition/pkg/errors"
	"github.com/mathiasfls/attrition/pkg/log"
)

// CSVOption configures CSV reading.
type CSVOption func(*csvConfig)

type csvConfig struct {
	delimiter rune
	hasHeader bool
	name      string
}

// WithDelimiter sets the field delimiter (default comma).
func WithDelimiter(d rune) CSVOption {
	return func(c *csvConfig) {
		c.delimiter = d
	}
}

// WithoutHeader treats the first record as data; column names are
// synthesized as column_0, column_1, and so on.
func WithoutHeader() CSVOption {
	return func(c *csvConfig) {
		c.hasHeader = false
	}
}

// WithName sets the table name reported in errors (default is the file
// path, or "csv" when reading from a stream).
func WithName(name string) CSVOption {
	return func(c *csvConfig) {
		c.name = name
	}
}

// ReadCSV loads a CSV file into a Table. Columns whose every value parses
// as a float64 become Numeric; everything else becomes Categorical with
// sorted unique levels.
func ReadCSV(path string, opts ...CSVOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "attrition: failed to open %s", path)
	}
	defer f.Close()

	cfg := applyCSVOptions(opts)
	if cfg.name == "" {
		cfg.name = path
	}
	return readCSV(f, cfg)
}

// ReadCSVFrom loads CSV data from a stream into a Table.
func ReadCSVFrom(r io.Reader, opts ...CSVOption) (*Table, error) {
	cfg := applyCSVOptions(opts)
	if cfg.name == "" {
		cfg.name = "csv"
	}
	return readCSV(r, cfg)
}

func applyCSVOptions(opts []CSVOption) csvConfig {
	cfg := csvConfig{delimiter: ',', hasHeader: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func readCSV(r io.Reader, cfg csvConfig) (*Table, error) {
	logger := log.GetLoggerWithName("dataset.csv")

	reader := csv.NewReader(r)
	reader.Comma = cfg.delimiter
	// FieldsPerRecord 0 makes the reader enforce a rectangular file.
	reader.FieldsPerRecord = 0

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "attrition: failed to parse CSV")
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("dataset.ReadCSV", "empty input")
	}

	var header []string
	var rows [][]string
	if cfg.hasHeader {
		header = records[0]
		rows = records[1:]
	} else {
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("column_%d", i)
		}
		rows = records
	}
	if len(rows) == 0 {
		return nil, errors.NewValueError("dataset.ReadCSV", "no data rows")
	}

	columns := make([]Column, len(header))
	raw := make([]string, len(rows))
	for j, name := range header {
		for i, row := range rows {
			raw[i] = strings.TrimSpace(row[j])
		}
		columns[j] = inferColumn(strings.TrimSpace(name), raw)
	}

	t, err := NewTable(cfg.name, columns...)
	if err != nil {
		return nil, err
	}

	logger.Debug("loaded CSV",
		log.ComponentKey, "dataset",
		log.SamplesKey, t.NumRows(),
		log.FeaturesKey, t.NumCols(),
	)
	return t, nil
}

// inferColumn decides the column kind from the raw strings. A column is
// numeric only when every cell parses as a float; otherwise the cells are
// kept verbatim as categorical levels.
func inferColumn(name string, raw []string) Column {
	vals := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		vals[i] = v
	}
	if numeric {
		return Column{Name: name, Kind: Numeric, Values: vals}
	}
	return NewCategoricalColumn(name, raw)
}
