package catalog

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `file,syllable,phoneme,visime
Ba_Ba.mp4,Ba_Ba,Ba,Ba
Ba_Ga.mp4,Ba_Ga,Ba,Ga
Ga_Ba.mp4,Ga_Ba,Ga,Ba
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trials.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeFile(t, sample))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	assert.Equal(t, TrialSpec{Index: 2, VideoFile: "Ba_Ga.mp4", Syllable: "Ba_Ga", Phoneme: "Ba", Viseme: "Ga"}, c.Trials[1])
	for i, tr := range c.Trials {
		assert.Equal(t, i+1, tr.Index)
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	path := writeFile(t, sample)

	a, err := Load(path)
	require.NoError(t, err)
	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	shuffled := b.Shuffled(rand.New(rand.NewSource(7)))
	sort.Slice(shuffled, func(i, j int) bool { return shuffled[i].Index < shuffled[j].Index })
	assert.Equal(t, a.Trials, shuffled)
}

func TestLoadHeaderByName(t *testing.T) {
	c, err := Parse(strings.NewReader("\ufeffVisime, phoneme ,extra,file,syllable\nGa,Ba,x,Ba_Ga.mp4,Ba_Ga\n\n,,,,\n"))
	require.NoError(t, err)
	require.Len(t, c.Trials, 1)
	assert.Equal(t, "Ga", c.Trials[0].Viseme)
	assert.Equal(t, "Ba", c.Trials[0].Phoneme)
	assert.Equal(t, "Ba_Ga.mp4", c.Trials[0].VideoFile)
}

func TestLoadErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("file,syllable,phoneme\nBa.mp4,Ba,Ba\n"))
	assert.ErrorContains(t, err, "visime")

	_, err = Parse(strings.NewReader("file,syllable,phoneme,visime\n,Ba,Ba,Ba\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLoadHeaderOnly(t *testing.T) {
	c, err := Parse(strings.NewReader("file,syllable,phoneme,visime\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Shuffled(rand.New(rand.NewSource(1))))
}

func TestShuffledLeavesCatalogOrder(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	before := append([]TrialSpec(nil), c.Trials...)

	for seed := int64(0); seed < 10; seed++ {
		out := c.Shuffled(rand.New(rand.NewSource(seed)))
		assert.Len(t, out, len(before))
	}
	assert.Equal(t, before, c.Trials)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Ga_Ba.mp4", "Ba_Ga.MP4", "notes.txt", "single.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Da_Da.mp4"), 0o755))

	var buf bytes.Buffer
	n, skipped, err := Build(dir, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"single.mp4"}, skipped)

	c, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, c.Trials, 2)
	assert.Equal(t, TrialSpec{Index: 1, VideoFile: "Ba_Ga.MP4", Syllable: "Ba_Ga", Phoneme: "Ba", Viseme: "Ga"}, c.Trials[0])
	assert.Equal(t, "Ga_Ba", c.Trials[1].Syllable)
}
