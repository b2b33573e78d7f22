package models

// Route is one row of a Mountain Project route export. Text fields are kept
// exactly as they appear in the CSV.
type Route struct {
	Name      string
	Rating    string
	AvgStars  string
	RouteType string
	Pitches   string
	Length    string
	Location  string
	URL       string

	Latitude     float64
	Longitude    float64
	LatitudeRaw  string
	LongitudeRaw string
}
