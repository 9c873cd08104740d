// Package catalog loads the list of trials of the audiovisual experiment.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

// Columns of the catalog header, in the order Build writes them.
var Columns = []string{"file", "syllable", "phoneme", "visime"}

// TrialSpec describes one stimulus. It is never modified after Load.
type TrialSpec struct {
	// Index is the 1-based row number in the catalog file. It identifies the
	// trial in device annotations.
	Index     int
	VideoFile string
	Syllable  string
	Phoneme   string
	Viseme    string
}

type Catalog struct {
	Trials []TrialSpec
}

// Load reads a catalog file. Columns are matched by header name so extra
// columns and reordering are tolerated.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse reads a catalog from r.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty catalog")
	}
	if err != nil {
		return nil, err
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		pos[h] = i
	}
	for _, col := range Columns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("header is missing column %q", col)
		}
	}

	var trials []TrialSpec
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}

		field := func(col string) string {
			i := pos[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		file := field("file")
		if file == "" {
			return nil, fmt.Errorf("line %d: empty file name", line)
		}

		trials = append(trials, TrialSpec{
			Index:     len(trials) + 1,
			VideoFile: file,
			Syllable:  field("syllable"),
			Phoneme:   field("phoneme"),
			Viseme:    field("visime"),
		})
	}

	return &Catalog{Trials: trials}, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Len returns the number of trials.
func (c *Catalog) Len() int { return len(c.Trials) }

// Shuffled returns the trials in a random order. The catalog keeps its file
// order.
func (c *Catalog) Shuffled(r *rand.Rand) []TrialSpec {
	out := make([]TrialSpec, len(c.Trials))
	copy(out, c.Trials)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
