package models

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports missing or malformed client input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// UnavailableFormatError reports a tier the source does not offer
type UnavailableFormatError struct {
	Requested string
	Available []Tier
}

func (e *UnavailableFormatError) Error() string {
	names := make([]string, 0, len(e.Available))
	for _, t := range e.Available {
		names = append(names, string(t))
	}
	return fmt.Sprintf("Quality %s not available. Available qualities: [%s]", e.Requested, strings.Join(names, ", "))
}

// ExtractionError wraps any failure of the extraction engine.
// Message is the engine's own text.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}

// TimeoutError reports an engine call that exceeded its deadline
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// NotFoundError reports a downloaded file that is absent or expired
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Name)
}
