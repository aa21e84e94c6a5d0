// Package pointio reads point sets for the command line tool.
package pointio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

// Format names a point file encoding.
type Format string

const (
	// CSV holds one point per row: the coordinates followed by any weights.
	CSV Format = "csv"
	// JSONLines holds one record per line.
	JSONLines Format = "jsonl"
	// YAML holds a sequence of records.
	YAML Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported format name or extension.
var ErrUnknownFormat = errors.New("pointio: unknown format")

// Record is the JSON and YAML shape of a point.
type Record struct {
	Coords  []float64 `json:"coords" yaml:"coords"`
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// ParseFormat accepts a format name. The empty name is not a format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return CSV, nil
	case "jsonl", "ndjson", "json":
		return JSONLines, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Read decodes dim-dimensional points from r. A dim of zero takes the
// dimension of the first point.
func Read(r io.Reader, f Format, dim int) (geom.PointSet, error) {
	var (
		ps  geom.PointSet
		err error
	)
	switch f {
	case CSV:
		ps, err = readCSV(r, dim)
	case JSONLines:
		ps, err = readJSONLines(r)
	case YAML:
		ps, err = readYAML(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	if dim == 0 && len(ps) > 0 {
		dim = ps[0].Dimension()
	}
	if err := ps.Validate(dim); err != nil {
		return nil, err
	}
	return ps, nil
}

// ReadFile reads path, inferring the format from its extension unless f
// is set.
func ReadFile(path string, f Format, dim int) (geom.PointSet, error) {
	if f == "" {
		var err error
		if f, err = FormatOf(path); err != nil {
			return nil, err
		}
	}
	var ps geom.PointSet
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var err error
		ps, err = Read(r, f, dim)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read points %s: %w", path, err)
	}
	return ps, nil
}

func readCSV(r io.Reader, dim int) (geom.PointSet, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var ps geom.PointSet
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ps, nil
		}
		if err != nil {
			return nil, err
		}
		vals := make([]float64, len(row))
		for i, field := range row {
			if vals[i], err = strconv.ParseFloat(field, 64); err != nil {
				if line == 1 && len(ps) == 0 {
					// header row
					vals = nil
					break
				}
				return nil, fmt.Errorf("row %d column %d: %w", line, i+1, err)
			}
		}
		if vals == nil {
			continue
		}
		d := dim
		if d == 0 || d > len(vals) {
			d = len(vals)
		}
		ps = append(ps, geom.NewWeightedPoint(vals[:d], vals[d:]...))
	}
}

func readJSONLines(r io.Reader) (geom.PointSet, error) {
	dec := json.NewDecoder(r)
	var ps geom.PointSet
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return ps, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(ps)+1, err)
		}
		ps = append(ps, geom.NewWeightedPoint(rec.Coords, rec.Weights...))
	}
}

func readYAML(r io.Reader) (geom.PointSet, error) {
	var recs []Record
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ps := make(geom.PointSet, len(recs))
	for i, rec := range recs {
		ps[i] = geom.NewWeightedPoint(rec.Coords, rec.Weights...)
	}
	return ps, nil
}
