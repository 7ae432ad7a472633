package server

import "time"

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response. OK reports whether a
// graph snapshot is available to serve route queries.
type HealthResponse struct {
	OK                  bool       `json:"ok"`
	Generation          uint64     `json:"generation"`           // Current snapshot generation (0 = none yet)
	Tokens              int        `json:"tokens"`               // Token count in the current snapshot
	Pools               int        `json:"pools"`                // Pool count in the current snapshot
	BuiltAt             *time.Time `json:"built_at,omitempty"`   // When the snapshot was built
	AgeMs               int64      `json:"age_ms"`               // Snapshot age in milliseconds
	Degraded            bool       `json:"degraded"`             // True when refresh cycles keep failing
	ConsecutiveFailures int        `json:"consecutive_failures"` // Failed refresh cycles since last success
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about pool history
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
