package gateway

import "time"

// RunRequest is an inbound task submission.
type RunRequest struct {
	TenantID string    `json:"tenant_id"`
	Task     string    `json:"task"`
	Tools    []ToolDef `json:"tools"`
}

// ToolDef names one capability the caller allows for this request. The
// catalog stays authoritative for the description and schema the planner
// sees; the wire shape carries them for compatibility with existing callers.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RunResponse is the single reply for a run request.
type RunResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// EventMessage represents a server-initiated event delivered to observers.
type EventMessage struct {
	Type      string      `json:"type,omitempty"`
	Event     string      `json:"event"`
	Seq       int64       `json:"seq,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ObserverInfo describes one connected observer.
type ObserverInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	IPAddress   string    `json:"ipAddress"`
}
