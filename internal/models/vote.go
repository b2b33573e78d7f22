package models

// RouteVote is the precomputed popularity of a single route detail page.
type RouteVote struct {
	URL   string `json:"url"`
	Votes int    `json:"votes"`
}
