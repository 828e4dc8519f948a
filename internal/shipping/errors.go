package shipping

// ============================================================================
// SHIPPING ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.

const (
	codeInvalid  = "invalid"
	codeNotFound = "not_found"
)

// ============================================================================
// SHIPPING ERROR TYPE
// ============================================================================

// ShippingError represents a shipping-specific error with a code and message.
// It implements the domain.Error interface pattern for consistent HTTP status mapping.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *ShippingError) ErrorMessage() string {
	return e.Message
}

// newShippingError creates a new shipping error.
func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

// ============================================================================
// SHIPPING DOMAIN ERRORS
// ============================================================================

var (
	// ErrRegionRequired is returned when no destination region is given.
	ErrRegionRequired = newShippingError(codeInvalid, "Shipping region is required")

	// ErrCurrencyRequired is returned when no currency is given.
	ErrCurrencyRequired = newShippingError(codeInvalid, "Currency is required")

	// ErrNoRates is returned when no shipping rates are available.
	ErrNoRates = newShippingError(codeNotFound, "No shipping rates available")

	// ErrInvalidRate is returned when a selected option is not offered for the region.
	ErrInvalidRate = newShippingError(codeInvalid, "Invalid shipping option")
)
