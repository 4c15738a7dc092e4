package adapters

import "fmt"

// ProviderError classifies news/broker collaborator failures so callers can
// distinguish transient trouble from connectivity loss.
type ProviderError struct {
	Type     string // "network", "rate_limit", "provider_error", "parse", "connectivity"
	Provider string
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error from %s: %s (%v)", e.Type, e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error from %s: %s", e.Type, e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func NewNetworkError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Type: "network", Provider: provider, Message: message, Cause: cause}
}

func NewRateLimitError(provider, message string) *ProviderError {
	return &ProviderError{Type: "rate_limit", Provider: provider, Message: message}
}

func NewProviderFault(provider, message string, cause error) *ProviderError {
	return &ProviderError{Type: "provider_error", Provider: provider, Message: message, Cause: cause}
}

func NewParseError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Type: "parse", Provider: provider, Message: message, Cause: cause}
}

// NewConnectivityError marks a fatal broker connectivity failure. The cycle
// loop pauses and retries on these instead of degrading.
func NewConnectivityError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Type: "connectivity", Provider: provider, Message: message, Cause: cause}
}

// IsConnectivity reports whether err is a fatal connectivity failure.
func IsConnectivity(err error) bool {
	pe, ok := err.(*ProviderError)
	return ok && pe.Type == "connectivity"
}
