package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Build writes a catalog for every .mp4 file in dir. Stimuli are expected to
// be named <phoneme>_<viseme>.mp4, e.g. "Ba_Ga.mp4" is the audio syllable
// "Ba" dubbed over the mouth movement of "Ga". It returns the number of rows
// written and the names it skipped because they do not follow that pattern.
func Build(dir string, w io.Writer) (int, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ".mp4" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, nil, err
	}

	n := 0
	var skipped []string
	for _, name := range names {
		syllable := strings.TrimSuffix(name, filepath.Ext(name))
		phoneme, viseme, ok := strings.Cut(syllable, "_")
		if !ok || phoneme == "" || viseme == "" {
			skipped = append(skipped, name)
			continue
		}
		if err := cw.Write([]string{name, syllable, phoneme, viseme}); err != nil {
			return n, skipped, err
		}
		n++
	}

	cw.Flush()
	return n, skipped, cw.Error()
}
