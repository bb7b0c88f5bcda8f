package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldLimitID   = "limit_id"
	FieldPeriod    = "period"
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
	FieldAutoRenew = "auto_renew"

	FieldTransactionID   = "transaction_id"
	FieldTransactionType = "transaction_type"
	FieldCategory        = "category"
)

// Components defines standard component names
const (
	ComponentApp  = "app"
	ComponentHTTP = "http"
)
