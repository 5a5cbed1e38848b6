package output

import (
	"encoding/csv"
	"os"
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// CSV is the `csv` Output kind: a buffered CSV writer, flushed and closed on
// Commit. Grounded on original_source/batchout/std/outputs/csv.py, adapted
// from its open-write-close-per-ingest-call shape to a buffered
// encoding/csv.Writer kept open across ingest calls within a run and
// finalized on Commit.
type CSV struct {
	path      string
	mode      string
	delimiter rune

	mu            sync.Mutex
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
}

// NewCSV constructs a csv output from a resolved fragment.
func NewCSV(fragment registry.Fragment) (*CSV, error) {
	path, err := config.BindString("output.csv", fragment, config.Option{Key: "path", Required: true})
	if err != nil {
		return nil, err
	}
	mode, err := config.BindString("output.csv", fragment, config.Option{
		Key: "mode", Default: "append", Choices: []any{"append", "overwrite"},
	})
	if err != nil {
		return nil, err
	}
	delimiter, err := config.BindString("output.csv", fragment, config.Option{Key: "delimiter", Default: ","})
	if err != nil {
		return nil, err
	}
	if len(delimiter) != 1 {
		return nil, berrors.NewConfigInvalid("output.csv", "delimiter", "must be a single character", nil)
	}
	return &CSV{path: path, mode: mode, delimiter: rune(delimiter[0])}, nil
}

func (c *CSV) ensureOpen() error {
	if c.file != nil {
		return nil
	}
	flag := os.O_CREATE | os.O_WRONLY
	if c.mode == "overwrite" {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_APPEND
	}
	f, err := os.OpenFile(c.path, flag, 0o644)
	if err != nil {
		return berrors.NewOutputError("csv", err)
	}
	c.file = f
	c.writer = csv.NewWriter(f)
	c.writer.Comma = c.delimiter
	return nil
}

// Ingest implements Output.
func (c *CSV) Ingest(columns []string, rows [][]any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureOpen(); err != nil {
		return 0, err
	}
	if !c.headerWritten {
		if err := c.writer.Write(columns); err != nil {
			return 0, berrors.NewOutputError("csv", err)
		}
		c.headerWritten = true
	}

	count := 0
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = valueString(v)
		}
		if err := c.writer.Write(record); err != nil {
			return count, berrors.NewOutputError("csv", err)
		}
		count++
	}
	return count, nil
}

// Commit implements Output: it flushes buffered rows and closes the file so
// the next run (or the next overwrite) starts clean.
func (c *CSV) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writer != nil {
		c.writer.Flush()
		if err := c.writer.Error(); err != nil {
			return berrors.NewOutputError("csv", err)
		}
	}
	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		c.writer = nil
		c.headerWritten = false
		if err != nil {
			return berrors.NewOutputError("csv", err)
		}
	}
	return nil
}

var _ Output = (*CSV)(nil)
