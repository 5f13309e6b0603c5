package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredentialMissing is returned when an operation needs an API key and none is configured.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrAborted marks a chat that was cancelled by the caller. It is an outcome, not a failure.
	ErrAborted = errors.New("request aborted")

	ErrAlreadyRegistered = errors.New("provider already registered")
	ErrNotRegistered     = errors.New("provider not registered")

	ErrNoMigrationPath    = errors.New("no migration path")
	ErrAmbiguousMigration = errors.New("ambiguous migration rule")
)

// FieldError is a single validation violation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError is returned when a configuration is rejected. Nothing was mutated.
type ValidationError struct {
	Provider ProviderID
	Errors   []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("invalid %s config: %s", e.Provider, strings.Join(msgs, "; "))
}

// NetworkError wraps a transport failure or a non-2xx HTTP response.
type NetworkError struct {
	Provider   ProviderID
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProviderError is an error the provider reported inside a well-formed stream.
type ProviderError struct {
	Provider ProviderID
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// MigrationError is returned when a stored config cannot be brought to the current schema.
type MigrationError struct {
	From string
	To   string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s -> %s failed: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// RegistryError reports a duplicate or missing provider registration.
type RegistryError struct {
	Provider ProviderID
	Err      error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Provider)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}
