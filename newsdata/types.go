package newsdata

import "time"

// Article is one news story.
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	Categories  []string  `json:"categories,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// LatestRequest describes a latest-headlines fetch.
type LatestRequest struct {
	// Query filters headlines by keyword. Empty fetches top headlines.
	Query string `json:"query" validate:"max=200"`
	// Category narrows to one section, e.g. "business".
	Category string `json:"category" validate:"omitempty,oneof=business technology politics world markets crypto"`
	// Language is an ISO 639-1 code.
	Language string `json:"language" validate:"omitempty,len=2"`
	// Limit caps the number of articles.
	Limit int `json:"limit" validate:"min=1,max=50"`
}

// ArchiveRequest describes an archive search.
type ArchiveRequest struct {
	// Query is the search phrase. Required for archive lookups.
	Query string `json:"query" validate:"required,max=200"`
	// From is the inclusive start of the window.
	From time.Time `json:"from"`
	// To is the inclusive end of the window.
	To time.Time `json:"to"`
	// Language is an ISO 639-1 code.
	Language string `json:"language" validate:"omitempty,len=2"`
	// Limit caps the number of articles.
	Limit int `json:"limit" validate:"min=1,max=50"`
}

// articlesResponse is the upstream wire shape for both endpoints.
type articlesResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"total_results"`
	Articles     []Article `json:"articles"`
}
