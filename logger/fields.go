package logger

// Canonical structured field keys. Using constants keeps log output
// queryable and prevents drift between subsystems.
const (
	FieldSymbol  = "symbol"
	FieldBatch   = "batch_id"
	FieldAccount = "account_id"
	FieldState   = "state"
	FieldError   = "error"
)
