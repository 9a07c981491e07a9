// Package models defines data structures shared by the MoodDine search client.
package models

// SearchResult is one ranked venue returned by the recommendation service.
// Field names match the JSON emitted by the service. Only Name is required;
// Rating is usually 0-5 but is taken as sent.
type SearchResult struct {
	Name          string  `json:"name" validate:"required"`
	Address       string  `json:"address"`
	Rating        float64 `json:"rating"`
	MapLink       string  `json:"mapLink,omitempty"`
	OpenNow       *bool   `json:"openNow,omitempty"`
	Image         string  `json:"image,omitempty"`
	RedditSummary string  `json:"redditSummary,omitempty"`
	RedditScore   int     `json:"redditScore"`
	RedditURL     string  `json:"redditUrl,omitempty"`
	FinalScore    float64 `json:"finalScore"`
}

// Availability is the tri-state opening status of a venue.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityOpen
	AvailabilityClosed
)

func (a Availability) String() string {
	switch a {
	case AvailabilityOpen:
		return "open now"
	case AvailabilityClosed:
		return "closed"
	default:
		return "hours unknown"
	}
}

// Availability maps the optional openNow flag onto its tri-state value.
func (r SearchResult) Availability() Availability {
	if r.OpenNow == nil {
		return AvailabilityUnknown
	}
	if *r.OpenNow {
		return AvailabilityOpen
	}
	return AvailabilityClosed
}

// HasRedditSignal reports whether the community summary should be rendered.
func (r SearchResult) HasRedditSignal() bool {
	return r.RedditSummary != "" || r.RedditURL != ""
}

// RecommendRequest is the body POSTed to the recommendation endpoint.
type RecommendRequest struct {
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
}
