package models

// LocationRow represents one clustered location and its seed route's fields
type LocationRow struct {
	Routes    string  `json:"routes"`
	Location  string  `json:"location"`
	Latitude  string  `json:"latitude"`
	Longitude string  `json:"longitude"`
	URL       string  `json:"url"`
	Votes     int     `json:"votes"`
	VotesLog  float64 `json:"votes_most_log"`
}
