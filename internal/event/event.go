package event

// PlaceholderID is substituted for a missing client or session identifier so
// that payload assembly never fails. Validators flag it with a warning.
const PlaceholderID = "unknown"

// Event is a named behavioral event handed to the pipeline by the caller.
// Params is required but may be empty; a nil Params map is a validation error.
type Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
	// EngagementTimeMsec is optional; values <= 0 mean unset and the
	// assembler substitutes the configured default.
	EngagementTimeMsec int64 `json:"engagement_time_msec,omitempty"`
}

// Identity carries the caller's identity context for a single send. The
// values are generated and persisted outside the pipeline.
type Identity struct {
	ClientID       string         `json:"client_id"`
	SessionID      string         `json:"session_id"`
	UserProperties map[string]any `json:"user_properties,omitempty"`
}
