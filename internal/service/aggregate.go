package service

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"crag-clusters/internal/models"
)

// routeSeparator joins the per-route lines of a location description.
const routeSeparator = " \n "

// Aggregate builds one LocationRow per cluster. Shared fields and the representative
// vote count come from the cluster's first member, its seed.
func Aggregate(routes []models.Route, votes []int, clusters [][]int, boulder bool) ([]models.LocationRow, error) {
	if len(votes) != len(routes) {
		return nil, fmt.Errorf("service: got %d vote counts for %d routes", len(votes), len(routes))
	}

	rows := make([]models.LocationRow, 0, len(clusters))
	for n, members := range clusters {
		if len(members) == 0 {
			return nil, fmt.Errorf("service: cluster %d is empty", n)
		}

		lines := make([]string, len(members))
		for k, i := range members {
			if i < 0 || i >= len(routes) {
				return nil, fmt.Errorf("service: cluster %d references row %d of %d", n, i, len(routes))
			}
			lines[k] = describeRoute(routes[i], votes[i], boulder)
		}

		seed := routes[members[0]]
		rows = append(rows, models.LocationRow{
			Routes:    strings.Join(lines, routeSeparator),
			Location:  locationName(seed.Location),
			Latitude:  seed.LatitudeRaw,
			Longitude: seed.LongitudeRaw,
			URL:       seed.URL,
			Votes:     votes[members[0]],
		})
	}
	return rows, nil
}

// describeRoute renders "Name (Rating Stars Votes)", plus "(Type Pitches Length)" for
// roped climbs.
func describeRoute(r models.Route, votes int, boulder bool) string {
	line := fmt.Sprintf("%s (%s %s %d)", r.Name, r.Rating, r.AvgStars, votes)
	if !boulder {
		line += fmt.Sprintf(" (%s %s %s)", r.RouteType, r.Pitches, r.Length)
	}
	return line
}

// locationName keeps the text before the first ">" minus its last character, so
// "Arizona > Queen Creek" becomes "Arizona".
func locationName(path string) string {
	head, _, _ := strings.Cut(path, ">")
	if head == "" {
		return ""
	}
	_, size := utf8.DecodeLastRuneInString(head)
	return head[:len(head)-size]
}

// FilterByVotes keeps rows whose representative vote count is at least threshold.
func FilterByVotes(rows []models.LocationRow, threshold int) []models.LocationRow {
	kept := make([]models.LocationRow, 0, len(rows))
	for _, row := range rows {
		if row.Votes >= threshold {
			kept = append(kept, row)
		}
	}
	return kept
}

// SplitByVotes separates rows at or above threshold from the rest, keeping order.
func SplitByVotes(rows []models.LocationRow, threshold int) (popular, rest []models.LocationRow) {
	popular = make([]models.LocationRow, 0)
	rest = make([]models.LocationRow, 0)
	for _, row := range rows {
		if row.Votes >= threshold {
			popular = append(popular, row)
		} else {
			rest = append(rest, row)
		}
	}
	return popular, rest
}

// ApplyLogScale sets VotesLog to log10 of the representative vote count.
func ApplyLogScale(rows []models.LocationRow) {
	for i := range rows {
		rows[i].VotesLog = math.Log10(float64(rows[i].Votes))
	}
}

// Reversed returns rows in reverse order without modifying rows.
func Reversed(rows []models.LocationRow) []models.LocationRow {
	out := make([]models.LocationRow, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}
