// Package persist writes cleaned observation tables to disk and reads them
// back for inspection.
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/obsfinder/obsfinder/internal/region"
	"github.com/obsfinder/obsfinder/internal/table"
)

// Output maps a result column to the short code written to disk.
type Output struct {
	Code   string `yaml:"code"`
	Column string `yaml:"column"`
}

// Container is an on-disk layout.
type Container int

const (
	CSV Container = iota
	Parquet
)

func (c Container) String() string {
	if c == Parquet {
		return "parquet"
	}
	return "csv"
}

// IOError reports a destination that could not be written or read.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrUnsupportedContainer is returned for destinations whose extension names
// a container this tool cannot produce.
var ErrUnsupportedContainer = errors.New("unsupported container format")

// ContainerFor picks the layout from the destination extension.
func ContainerFor(path string) (Container, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return Parquet, nil
	case ".h5", ".hdf5", ".he5":
		return CSV, &IOError{Op: "save", Path: path, Err: ErrUnsupportedContainer}
	default:
		return CSV, nil
	}
}

// DefaultName returns the file name used when the caller gives none.
func DefaultName(profile string, r region.Region, ext string) string {
	return fmt.Sprintf("observations_%s_%.6f_%.6f_%.6f%s", profile, r.CenterLat, r.CenterLong, r.Size, ext)
}

// CheckDestination verifies that dest can be written without touching the
// network first: the container is supported and the parent directory exists.
func CheckDestination(dest string) error {
	if _, err := ContainerFor(dest); err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	info, err := os.Stat(dir)
	if err != nil {
		return &IOError{Op: "save", Path: dest, Err: err}
	}
	if !info.IsDir() {
		return &IOError{Op: "save", Path: dest, Err: fmt.Errorf("%s is not a directory", dir)}
	}
	return nil
}

// Save writes the outputs columns of t to dest. The file appears only once
// it is complete; on failure nothing is left behind.
func Save(t *table.Table, dest string, outputs []Output) error {
	if err := CheckDestination(dest); err != nil {
		return err
	}
	container, _ := ContainerFor(dest)

	idx, err := selectColumns(t, outputs)
	if err != nil {
		return err
	}

	// Created like os.Create so the final file gets the usual umask mode.
	tmpPath := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return &IOError{Op: "create", Path: dest, Err: err}
	}

	switch container {
	case Parquet:
		err = writeParquet(tmp, t, outputs, idx)
	default:
		err = writeCSV(tmp, t, outputs, idx)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: dest, Err: err}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: dest, Err: err}
	}

	slog.Debug("Saved observations", "path", dest, "format", container, "rows", t.Len(), "columns", len(outputs))
	return nil
}

// Load reads a file written by Save.
func Load(path string) (*table.Table, error) {
	container, err := ContainerFor(path)
	if err != nil {
		return nil, err
	}
	if container == Parquet {
		return readParquet(path)
	}
	return readCSV(path)
}

func selectColumns(t *table.Table, outputs []Output) ([]int, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no output columns configured")
	}
	idx := make([]int, len(outputs))
	for i, o := range outputs {
		if idx[i] = t.Index(o.Column); idx[i] < 0 {
			return nil, fmt.Errorf("output %s: column %q not in table", o.Code, o.Column)
		}
	}
	return idx, nil
}
