package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"crag-clusters/internal/models"
)

// OutputHeader is the header written to every processed file.
var OutputHeader = []string{"Route", "Location", "Latitude", "Longitude", "URL", "votes_most_log"}

// OutputPath derives "<stem><suffix>.csv" next to input, e.g. data/az.csv -> data/az_processed.csv.
func OutputPath(input, suffix string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix + ".csv"
}

// EncodeLocations writes the header followed by one record per row.
func EncodeLocations(w io.Writer, rows []models.LocationRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(OutputHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Routes,
			row.Location,
			row.Latitude,
			row.Longitude,
			row.URL,
			formatLog(row.VotesLog),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// formatLog renders the log column; infinities use the lowercase inf spelling
// that earlier processed files carry.
func formatLog(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsNaN(v):
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLocations writes rows to path. The file is staged next to path and renamed
// into place, so a failure never leaves a truncated output behind.
func WriteLocations(path string, rows []models.LocationRow) error {
	_, err := WriteAllLocations(map[string][]models.LocationRow{path: rows})
	return err
}

// WriteAllLocations writes every output or none of them. All files are staged before
// any is renamed into place, and outputs already moved are removed if a later rename
// fails. It returns the written paths in sorted order.
func WriteAllLocations(outputs map[string][]models.LocationRow) ([]string, error) {
	paths := slices.Sorted(maps.Keys(outputs))

	staged := make([]string, 0, len(paths))
	discard := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, path := range paths {
		tmp, err := stageLocations(path, outputs[path])
		if err != nil {
			discard()
			return nil, err
		}
		staged = append(staged, tmp)
	}

	for i, path := range paths {
		if err := os.Rename(staged[i], path); err != nil {
			for _, done := range paths[:i] {
				os.Remove(done)
			}
			staged = staged[i:]
			discard()
			return nil, fmt.Errorf("dataset: failed to move output into place: %w", err)
		}
	}
	return paths, nil
}

// stageLocations writes rows to a temp file in the directory of path and returns its name.
func stageLocations(path string, rows []models.LocationRow) (name string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("dataset: failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("dataset: failed to set permissions: %w", err)
	}
	if err = EncodeLocations(tmp, rows); err != nil {
		return "", fmt.Errorf("dataset: failed to write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("dataset: failed to close %s: %w", path, err)
	}
	return tmp.Name(), nil
}
