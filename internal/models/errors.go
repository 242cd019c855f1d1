package models

import "fmt"

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

// ValidationError rejects a send request before any gateway call. Callers
// should map it to a 4xx response.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// GatewayError is a terminal gateway-reported failure for a send.
type GatewayError struct {
	StatusCode int
	Reason     string
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway rejected request (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("gateway rejected request: %s", e.Reason)
}
