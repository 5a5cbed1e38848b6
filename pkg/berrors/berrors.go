// Package berrors defines the error-kind taxonomy the batch orchestrator and
// its components raise: configuration problems are fatal at construction,
// registry lookups fail closed, and runtime data-quality problems degrade to
// null instead of propagating.
package berrors

import "fmt"

// ConfigInvalidError reports a malformed or incomplete component fragment.
type ConfigInvalidError struct {
	Component string
	Field     string
	Message   string
	Err       error
}

// NewConfigInvalid constructs a ConfigInvalidError.
func NewConfigInvalid(component, field, message string, err error) error {
	return &ConfigInvalidError{Component: component, Field: field, Message: message, Err: err}
}

func (e *ConfigInvalidError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("config invalid: %s.%s: %s", e.Component, e.Field, e.Message)
	}
	return fmt.Sprintf("config invalid: %s: %s", e.Component, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigInvalidError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnknownTypeError reports a registry lookup for a (kind, type) pair that was
// never bound, or a fragment missing its required `type` discriminator.
type UnknownTypeError struct {
	Kind string
	Name string
}

// NewUnknownType constructs an UnknownTypeError.
func NewUnknownType(kind, name string) error {
	return &UnknownTypeError{Kind: kind, Name: name}
}

func (e *UnknownTypeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name == "" {
		return fmt.Sprintf("unknown type: %s fragment is missing its type discriminator", e.Kind)
	}
	return fmt.Sprintf("unknown type: %q is not bound to any constructor for kind %q", e.Name, e.Kind)
}

// ClassAlreadyBoundError reports a duplicate Registry.Bind for a (kind, name) pair.
type ClassAlreadyBoundError struct {
	Kind string
	Name string
}

// NewClassAlreadyBound constructs a ClassAlreadyBoundError.
func NewClassAlreadyBound(kind, name string) error {
	return &ClassAlreadyBoundError{Kind: kind, Name: name}
}

func (e *ClassAlreadyBoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("type %q of kind %q is already bound", e.Name, e.Kind)
}

// UndefinedReferenceError reports a task, index, or column referencing a
// component name that was never constructed.
type UndefinedReferenceError struct {
	Referrer  string
	Kind      string
	Reference string
}

// NewUndefinedReference constructs an UndefinedReferenceError.
func NewUndefinedReference(referrer, kind, reference string) error {
	return &UndefinedReferenceError{Referrer: referrer, Kind: kind, Reference: reference}
}

func (e *UndefinedReferenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s references undefined %s %q", e.Referrer, e.Kind, e.Reference)
}

// ChangedAfterFirstRunError reports an attempt to add components once the
// batch has already started its first run.
type ChangedAfterFirstRunError struct {
	Kind string
}

// NewChangedAfterFirstRun constructs a ChangedAfterFirstRunError.
func NewChangedAfterFirstRun(kind string) error {
	return &ChangedAfterFirstRunError{Kind: kind}
}

func (e *ChangedAfterFirstRunError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cannot add %s: batch has already started its first run", e.Kind)
}

// ExtractionFailure wraps an extractor parse/evaluation error. Extractors do
// not return it: they log the underlying error and return (nil, nil).
type ExtractionFailure struct {
	Path string
	Err  error
}

// NewExtractionFailure constructs an ExtractionFailure.
func NewExtractionFailure(path string, err error) error {
	return &ExtractionFailure{Path: path, Err: err}
}

func (e *ExtractionFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("extraction failed for path %q: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ExtractionFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CastFailure wraps a column cast error. Like ExtractionFailure, columns
// do not return it from Value(); a failed cast makes the cell null.
type CastFailure struct {
	Column string
	Cast   string
	Value  any
	Err    error
}

// NewCastFailure constructs a CastFailure.
func NewCastFailure(column, cast string, value any, err error) error {
	return &CastFailure{Column: column, Cast: cast, Value: value, Err: err}
}

func (e *CastFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cast failed for column %q (%s) on value %v: %v", e.Column, e.Cast, e.Value, e.Err)
}

// Unwrap exposes the underlying error.
func (e *CastFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InputError reports an adapter-level read failure. It propagates out of
// run_once and aborts the current run.
type InputError struct {
	Input string
	Err   error
}

// NewInputError constructs an InputError.
func NewInputError(input string, err error) error {
	return &InputError{Input: input, Err: err}
}

func (e *InputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("input %q failed: %v", e.Input, e.Err)
}

// Unwrap exposes the underlying error.
func (e *InputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// OutputError reports an adapter-level write failure. It propagates out of
// run_once and aborts the current run.
type OutputError struct {
	Output string
	Err    error
}

// NewOutputError constructs an OutputError.
func NewOutputError(output string, err error) error {
	return &OutputError{Output: output, Err: err}
}

func (e *OutputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("output %q failed: %v", e.Output, e.Err)
}

// Unwrap exposes the underlying error.
func (e *OutputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
