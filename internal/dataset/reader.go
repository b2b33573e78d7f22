package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"crag-clusters/internal/models"
)

// Column names of a Mountain Project route export.
const (
	ColRoute     = "Route"
	ColRating    = "Rating"
	ColAvgStars  = "Avg Stars"
	ColRouteType = "Route Type"
	ColPitches   = "Pitches"
	ColLength    = "Length"
	ColLocation  = "Location"
	ColLatitude  = "Area Latitude"
	ColLongitude = "Area Longitude"
	ColURL       = "URL"
)

// RequiredColumns must all be present in the input header.
var RequiredColumns = []string{
	ColRoute, ColRating, ColAvgStars, ColRouteType, ColPitches,
	ColLength, ColLocation, ColLatitude, ColLongitude, ColURL,
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRoutes opens path and parses every route in it.
func ReadRoutes(path string) ([]models.Route, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open file: %w", err)
	}
	defer file.Close()

	return ParseRoutes(path, file)
}

// ParseRoutes reads routes from r. name is only used in error messages.
func ParseRoutes(name string, r io.Reader) ([]models.Route, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Path: name, Missing: RequiredColumns}
		}
		return nil, &SchemaError{Path: name, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Path: name, Missing: missing}
	}

	var routes []models.Route
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SchemaError{Path: name, Err: err}
		}

		field := func(col string) string { return record[index[col]] }

		lat, err := parseCoordinate(field(ColLatitude))
		if err != nil {
			return nil, &DataError{Path: name, Row: row, Column: ColLatitude, Value: field(ColLatitude), Err: err}
		}
		lon, err := parseCoordinate(field(ColLongitude))
		if err != nil {
			return nil, &DataError{Path: name, Row: row, Column: ColLongitude, Value: field(ColLongitude), Err: err}
		}

		routes = append(routes, models.Route{
			Name:         field(ColRoute),
			Rating:       field(ColRating),
			AvgStars:     field(ColAvgStars),
			RouteType:    field(ColRouteType),
			Pitches:      field(ColPitches),
			Length:       field(ColLength),
			Location:     field(ColLocation),
			URL:          field(ColURL),
			Latitude:     lat,
			Longitude:    lon,
			LatitudeRaw:  field(ColLatitude),
			LongitudeRaw: field(ColLongitude),
		})
	}

	return routes, nil
}

var errNotFinite = errors.New("coordinate is not a finite number")

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}
