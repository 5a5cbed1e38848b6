package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

func TestLoggerIngestReturnsRowCount(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logging.New(logging.Options{Level: "debug", Writer: buf})

	out, err := NewLoggerOutput(registry.Fragment{"type": "logger"}, log)
	require.NoError(t, err)

	n, err := out.Ingest([]string{"id", "name"}, [][]any{{1, "widget"}, {2, "gadget"}})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, out.Commit())

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 3) // header + 2 rows
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
}

func TestLoggerTruncatesOverwideCells(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logging.New(logging.Options{Level: "debug", Writer: buf})

	out, err := NewLoggerOutput(registry.Fragment{"type": "logger", "width": 20}, log)
	require.NoError(t, err)

	_, err = out.Ingest([]string{"col"}, [][]any{{"a very long value that should be truncated"}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "a very long val...")
}

func TestCSVIngestWritesHeaderOnceAndFlushesOnCommit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	out, err := NewCSV(registry.Fragment{"type": "csv", "path": path})
	require.NoError(t, err)

	n, err := out.Ingest([]string{"id", "name"}, [][]any{{1, "widget"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = out.Ingest([]string{"id", "name"}, [][]any{{2, "gadget"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, out.Commit())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id,name\n1,widget\n2,gadget\n", string(contents))
}

func TestCSVOverwriteModeTruncatesOnEachRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale data\n"), 0o644))

	out, err := NewCSV(registry.Fragment{"type": "csv", "path": path, "mode": "overwrite"})
	require.NoError(t, err)

	_, err = out.Ingest([]string{"id"}, [][]any{{1}})
	require.NoError(t, err)
	require.NoError(t, out.Commit())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id\n1\n", string(contents))
}

func TestCSVAppendModePreservesExistingContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n1\n"), 0o644))

	out, err := NewCSV(registry.Fragment{"type": "csv", "path": path, "mode": "append"})
	require.NoError(t, err)

	_, err = out.Ingest([]string{"id"}, [][]any{{2}})
	require.NoError(t, err)
	require.NoError(t, out.Commit())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id\n1\nid\n2\n", string(contents))
}

func TestCSVRejectsMultiCharDelimiter(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(registry.Fragment{"type": "csv", "path": "/tmp/x.csv", "delimiter": "::"})
	require.Error(t, err)
}

func TestCSVRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(registry.Fragment{"type": "csv"})
	require.Error(t, err)
}
