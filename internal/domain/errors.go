// Package domain defines the core types and errors shared by the pipeline
// builder, the matching stages, and the orchestrator.
package domain

import "fmt"

// ConfigurationError indicates a pipeline or stage was misconfigured: an empty
// stage, duplicate fragment names, an unresolved fragment reference, or an
// unknown/duplicate enabled stage. It is always raised at build time, before
// any engine work is spent.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// PipelineSpentError indicates a pipeline was reused after composing its final
// query. A pipeline produces its composed query at most once.
type PipelineSpentError struct {
	Message string
}

func (e *PipelineSpentError) Error() string { return e.Message }

// SchemaError indicates a bound relation is missing required columns or has
// column type mismatches. The message lists every problem, not just the first.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// EngineError wraps an opaque failure from the query engine. The underlying
// driver error is preserved unchanged for unwrapping.
type EngineError struct {
	Query string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine execution failed: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrPipelineSpent creates a PipelineSpentError with a formatted message.
func ErrPipelineSpent(format string, args ...interface{}) *PipelineSpentError {
	return &PipelineSpentError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrEngine wraps a query engine failure.
func ErrEngine(query string, err error) *EngineError {
	return &EngineError{Query: query, Err: err}
}
