package output

import (
	"fmt"
	"strings"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

const truncateMarker = "..."

// LoggerOutput is the `logger` Output kind: it writes rows through the
// structured logger instead of a file, useful for dry-run config review.
// Grounded on original_source/batchout/std/outputs/logger.py, with its
// fixed-width column formatting preserved.
type LoggerOutput struct {
	width int
	log   *logging.Logger
}

// NewLoggerOutput constructs a logger output from a resolved fragment.
func NewLoggerOutput(fragment registry.Fragment, log *logging.Logger) (*LoggerOutput, error) {
	width, err := config.BindInt("output.logger", fragment, config.Option{Key: "width", Default: 80})
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		width = 80
	}
	return &LoggerOutput{width: width, log: log}, nil
}

// Ingest implements Output.
func (l *LoggerOutput) Ingest(columns []string, rows [][]any) (int, error) {
	if len(columns) == 0 {
		return 0, nil
	}
	cellSize := l.cellSize(columns)

	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = formatCell(cellSize, c)
	}
	l.log.Debug(strings.Join(cells, " | "))

	count := 0
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(cellSize, valueString(v))
		}
		l.log.Debug(strings.Join(cells, " | "))
		count++
	}
	return count, nil
}

func (l *LoggerOutput) cellSize(columns []string) int {
	maxWidth := l.width / len(columns)
	minWidth := 0
	for _, c := range columns {
		if len(c) > minWidth {
			minWidth = len(c)
		}
	}
	if minWidth > maxWidth {
		minWidth = maxWidth
	}
	size := minWidth
	if maxWidth > size {
		size = maxWidth
	}
	size = size - len(truncateMarker) + 1
	if size < 1 {
		size = 1
	}
	return size
}

func formatCell(size int, value string) string {
	textSize := size - len(truncateMarker)
	if textSize < 0 {
		textSize = 0
	}
	if len(value) > textSize {
		value = value[:textSize] + truncateMarker
	}
	return padRight(value, size)
}

func padRight(s string, size int) string {
	if len(s) >= size {
		return s
	}
	return s + strings.Repeat(" ", size-len(s))
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Commit implements Output.
func (l *LoggerOutput) Commit() error { return nil }

var _ Output = (*LoggerOutput)(nil)
