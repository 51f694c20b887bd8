package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRotator returns a rotator with a tiny size limit and a clock that
// advances one second per call.
func newTestRotator(t *testing.T, cfg RotatorConfig) *LogRotator {
	t.Helper()
	cfg.Dir = t.TempDir()
	r, err := NewLogRotator(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	r.maxSize = 16
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func backups(t *testing.T, r *LogRotator) []string {
	t.Helper()
	entries, err := os.ReadDir(r.dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), r.name+".") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestNewLogRotator_RequiresDir(t *testing.T) {
	_, err := NewLogRotator(RotatorConfig{})
	assert.Error(t, err)
}

func TestLogRotator_RotatesPastLimit(t *testing.T) {
	r := newTestRotator(t, RotatorConfig{})

	_, err := r.Write([]byte("0123456789\n"))
	require.NoError(t, err)
	assert.Empty(t, backups(t, r))

	_, err = r.Write([]byte("abcdefghij\n"))
	require.NoError(t, err)
	require.Len(t, backups(t, r), 1)

	current, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij\n", string(current))

	old, err := os.ReadFile(filepath.Join(r.dir, backups(t, r)[0]))
	require.NoError(t, err)
	assert.Equal(t, "0123456789\n", string(old))
}

func TestLogRotator_OversizedWriteOnEmptyFile(t *testing.T) {
	r := newTestRotator(t, RotatorConfig{})

	_, err := r.Write(bytes.Repeat([]byte("x"), 100))
	require.NoError(t, err)
	assert.Empty(t, backups(t, r), "an empty file is never rotated")
}

func TestLogRotator_KeepsMaxBackups(t *testing.T) {
	r := newTestRotator(t, RotatorConfig{MaxBackups: 2})

	for range 6 {
		_, err := r.Write([]byte("0123456789\n"))
		require.NoError(t, err)
	}
	assert.Len(t, backups(t, r), 2)
}

func TestLogRotator_Compress(t *testing.T) {
	r := newTestRotator(t, RotatorConfig{Compress: true, Name: "custom.log"})
	assert.Equal(t, "custom.log", filepath.Base(r.Path()))

	_, err := r.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("second line\n"))
	require.NoError(t, err)

	names := backups(t, r)
	require.Len(t, names, 1)
	require.True(t, strings.HasSuffix(names[0], ".gz"))

	f, err := os.Open(filepath.Join(r.dir, names[0]))
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "first line\n", string(data))
}

func TestLogRotator_ReopensAfterClose(t *testing.T) {
	r := newTestRotator(t, RotatorConfig{})
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Write([]byte("again\n"))
	require.NoError(t, err)
	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Equal(t, "again\n", string(data))
}
