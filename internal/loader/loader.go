package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/cohortlab/unionfit/internal/model"
)

// Loader errors.
var (
	// ErrEmptyFile is returned when the file holds no data rows.
	ErrEmptyFile = errors.New("no data rows in prevalence file")

	// ErrUnknownLayout is returned when a row has neither 2 (short form)
	// nor 4 (long form) fields.
	ErrUnknownLayout = errors.New("row must have 2 fields (age,prevalence) or 4 (age,sex,group,prevalence)")

	// ErrMissingSeriesKey is returned when a short-form file is loaded
	// without a default sex/group label to file the series under.
	ErrMissingSeriesKey = errors.New("short-form file needs a sex and group label")
)

// Reader loads prevalence CSV files.
type Reader struct {
	// percent divides loaded values by 100.
	percent bool

	// latin1 transcodes input from ISO-8859-1.
	latin1 bool

	// comma is the CSV field separator.
	comma rune

	// defaultKey labels the series of a short-form file.
	defaultKey *model.RunKey
}

// Option configures a Reader.
type Option func(*Reader)

// WithPercent treats input values as percentages and divides them by 100,
// so the estimation core only ever sees proportions.
func WithPercent() Option {
	return func(r *Reader) {
		r.percent = true
	}
}

// WithLatin1 transcodes the file from ISO-8859-1 before parsing.
func WithLatin1() Option {
	return func(r *Reader) {
		r.latin1 = true
	}
}

// WithDelimiter sets the CSV field separator. Semicolons are common in
// Latin-1 survey extracts.
func WithDelimiter(comma rune) Option {
	return func(r *Reader) {
		if comma != 0 {
			r.comma = comma
		}
	}
}

// WithDefaultKey labels the single series of a short-form file.
func WithDefaultKey(key model.RunKey) Option {
	return func(r *Reader) {
		k := key
		r.defaultKey = &k
	}
}

// NewReader creates a Reader with the given options.
func NewReader(opts ...Option) *Reader {
	r := &Reader{comma: ','}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFile reads a prevalence CSV file and returns one validated series per
// (sex, group) key found in it.
func (r *Reader) LoadFile(path string) (map[model.RunKey]*model.AgeSeries, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open prevalence file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	series, err := r.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// rawSeries accumulates rows for one key before validation.
type rawSeries struct {
	ages   []int
	values []float64
}

// Load reads prevalence CSV data from src.
func (r *Reader) Load(src io.Reader) (map[model.RunKey]*model.AgeSeries, error) {
	if r.latin1 {
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.Comma = r.comma
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	// Short and long form have different widths; we check per row.
	cr.FieldsPerRecord = -1

	raw := make(map[model.RunKey]*rawSeries)
	row := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		row++

		// A non-numeric first field on the first row is a header.
		if row == 1 {
			if _, err := strconv.Atoi(strings.TrimSpace(record[0])); err != nil {
				continue
			}
		}

		key, age, value, err := r.parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		rs, ok := raw[key]
		if !ok {
			rs = &rawSeries{}
			raw[key] = rs
		}
		rs.ages = append(rs.ages, age)
		rs.values = append(rs.values, value)
	}

	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	out := make(map[model.RunKey]*model.AgeSeries, len(raw))
	for key, rs := range raw {
		// Long-form rows may interleave series, so order within a key is
		// not guaranteed. Sort by age; NewAgeSeries still rejects gaps and
		// duplicates.
		sort.Sort(byAge{rs})
		series, err := model.NewAgeSeries(rs.ages, rs.values)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", key, err)
		}
		out[key] = series
	}
	return out, nil
}

// parseRow extracts (key, age, value) from one CSV record.
func (r *Reader) parseRow(record []string) (model.RunKey, int, float64, error) {
	var key model.RunKey
	var ageField, valueField string

	switch len(record) {
	case 2:
		if r.defaultKey == nil {
			return key, 0, 0, ErrMissingSeriesKey
		}
		key = *r.defaultKey
		ageField, valueField = record[0], record[1]
	case 4:
		sex, err := model.ParseSex(record[1])
		if err != nil {
			return key, 0, 0, err
		}
		group, err := model.ParseGroup(record[2])
		if err != nil {
			return key, 0, 0, err
		}
		key = model.RunKey{Sex: sex, Group: group}
		ageField, valueField = record[0], record[3]
	default:
		return key, 0, 0, fmt.Errorf("%w: got %d fields", ErrUnknownLayout, len(record))
	}

	age, err := strconv.Atoi(strings.TrimSpace(ageField))
	if err != nil {
		return key, 0, 0, fmt.Errorf("invalid age %q: %w", ageField, err)
	}

	// Decimal commas appear in Latin-1 extracts alongside semicolon
	// delimiters.
	valueField = strings.ReplaceAll(strings.TrimSpace(valueField), ",", ".")
	value, err := strconv.ParseFloat(valueField, 64)
	if err != nil {
		return key, 0, 0, fmt.Errorf("invalid prevalence %q: %w", valueField, err)
	}
	if r.percent {
		value /= 100
	}
	return key, age, value, nil
}

// byAge sorts a rawSeries by age, keeping values aligned.
type byAge struct{ *rawSeries }

func (s byAge) Len() int           { return len(s.ages) }
func (s byAge) Less(i, j int) bool { return s.ages[i] < s.ages[j] }
func (s byAge) Swap(i, j int) {
	s.ages[i], s.ages[j] = s.ages[j], s.ages[i]
	s.values[i], s.values[j] = s.values[j], s.values[i]
}
