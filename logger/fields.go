package logger

import "time"

// Standard field key constants for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldProvider   = "provider"
	FieldBucket     = "bucket"
	FieldOperation  = "operation"
	FieldReason     = "reason"
	FieldAttempt    = "attempt"
	FieldRetryAfter = "retry_after_ms"
	FieldDuration   = "duration_ms"
	FieldCached     = "cached"
	FieldStale      = "stale"
	FieldItemCount  = "item_count"
	FieldError      = "error"
	FieldState      = "state"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("throttled", logger.Fields("bucket", "latest", "reason", reason))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
