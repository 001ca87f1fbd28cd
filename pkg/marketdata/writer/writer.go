package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rxtech-lab/market-downloader/internal/types"
)

// BarWriter defines the interface for serializing a fetched bar sequence
// to disk. Write returns the paths of every file it produced.
type BarWriter interface {
	Write(bars []types.Bar) (paths []string, err error)
}

// ErrSplitUnsupported is returned when day-splitting is requested for a
// format that only writes a single file.
var ErrSplitUnsupported = errors.New("split-by-day is only supported for csv output")

// IoError indicates an output path could not be created or written. Fatal.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// atomicWrite creates parent directories, writes through a uniquely named
// temp file next to path and renames it into place on success, so an
// interrupted run never leaves a partial file at the final path. An
// existing file at path is overwritten.
func atomicWrite(path string, write func(out io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &IoError{Path: dir, Err: err}
		}
	}

	tmpPath := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())

	file, err := os.Create(tmpPath)
	if err != nil {
		return &IoError{Path: tmpPath, Err: err}
	}

	if err := write(file); err != nil {
		file.Close()
		os.Remove(tmpPath)

		return &IoError{Path: tmpPath, Err: err}
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)

		return &IoError{Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return &IoError{Path: path, Err: err}
	}

	return nil
}
