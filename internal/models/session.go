package models

// Phase names the active member of SessionState.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseResults Phase = "results"
	PhaseFailed  Phase = "failed"
)

// SessionState is the render-ready state of a search session.
// Exactly one of Idle, Loading, Results or Failed is active at a time.
type SessionState interface {
	Phase() Phase
	sessionState()
}

// Idle is the state before the first search.
type Idle struct{}

// Loading means a request for Query is in flight.
type Loading struct {
	Query string
}

// Results holds the ranked venues for Query, in backend order.
type Results struct {
	Query   string
	Results []SearchResult
}

// Failed means the request for Query did not produce results.
// Err is kept for logging; the presentation layer only needs Reason.
type Failed struct {
	Query  string
	Reason FailureReason
	Err    error
}

func (Idle) Phase() Phase    { return PhaseIdle }
func (Loading) Phase() Phase { return PhaseLoading }
func (Results) Phase() Phase { return PhaseResults }
func (Failed) Phase() Phase  { return PhaseFailed }

func (Idle) sessionState()    {}
func (Loading) sessionState() {}
func (Results) sessionState() {}
func (Failed) sessionState()  {}

// QueryOf returns the query associated with a state, or "" for Idle.
func QueryOf(s SessionState) string {
	switch st := s.(type) {
	case Loading:
		return st.Query
	case Results:
		return st.Query
	case Failed:
		return st.Query
	default:
		return ""
	}
}

// FailureReason classifies why a search failed.
type FailureReason int

const (
	TransportFailure FailureReason = iota
	MalformedResponse
)

func (r FailureReason) String() string {
	switch r {
	case MalformedResponse:
		return "malformed response"
	default:
		return "transport failure"
	}
}

// NotifyKind is the severity of a user-facing notification.
type NotifyKind int

const (
	NotifySuccess NotifyKind = iota
	NotifyError
)

func (k NotifyKind) String() string {
	if k == NotifyError {
		return "error"
	}
	return "success"
}
