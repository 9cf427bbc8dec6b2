package service

// Structured log field names shared across the service and middleware
// layers so log aggregation can key on consistent names.
const (
	LogFieldWaID      = "wa_id"
	LogFieldMessageID = "message_id"
	LogFieldDirection = "direction"
	LogFieldKind      = "kind"
	LogFieldStatus    = "status"
	LogFieldEvent     = "event"
	LogFieldFile      = "file"
	LogFieldMethod    = "method"
	LogFieldPath      = "path"
	LogFieldRemoteIP  = "remote_ip"
	LogFieldHTTPCode  = "status_code"
	LogFieldDuration  = "duration_ms"
)
