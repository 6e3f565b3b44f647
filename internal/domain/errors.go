package domain

import "fmt"

// UpstreamError is a non-zero status code in a remote response envelope.
type UpstreamError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream code=%d msg=%q", e.Endpoint, e.Code, e.Message)
}

// TransportError wraps a network or timeout failure on a remote call.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConfigError reports a missing or inconsistent configuration value.
// Fatal at startup; also raised when an account cannot be routed to a credential.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// DataError reports a fetched record missing expected fields.
type DataError struct {
	Record string
	Reason string
}

func (e *DataError) Error() string { return fmt.Sprintf("record %s: %s", e.Record, e.Reason) }
