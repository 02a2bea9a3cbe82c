package models

// Result is a single search hit. Results carry no identity beyond the
// URL; duplicates across queries are collapsed downstream.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
