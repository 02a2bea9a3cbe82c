package models

// Document is a fetched page converted to text. Empty Content marks a
// failed or unfetchable page; such documents are dropped before
// aggregation.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Status  int    `json:"status"`
}
