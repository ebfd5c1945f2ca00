package diag

import (
	"errors"
	"fmt"
)

// Code categorizes a conversion error.
type Code string

const (
	// CodeNameCollision indicates the suffix search in one directory hit
	// its bound. The node is not placed; its siblings are.
	CodeNameCollision Code = "NAME_COLLISION_UNRESOLVED"

	// CodeInvalidProperty indicates a property value with no canonical
	// encoding. The property is dropped and the node still emitted.
	CodeInvalidProperty Code = "INVALID_PROPERTY_VALUE"

	// CodeWriteFailure indicates a directory or file could not be created.
	// The subtree below it is not written.
	CodeWriteFailure Code = "IO_WRITE_FAILURE"

	// CodeClassFallback indicates a class without a catalog entry was
	// projected as a plain directory.
	CodeClassFallback Code = "UNSUPPORTED_CLASS_FALLBACK"

	// CodeCancelled indicates the caller aborted the run.
	CodeCancelled Code = "CANCELLED"
)

// Severity orders codes by their effect on the run result.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Severity returns how an error of this code affects the run.
func (c Code) Severity() Severity {
	switch c {
	case CodeNameCollision, CodeWriteFailure, CodeCancelled:
		return SeverityFatal
	case CodeInvalidProperty:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Error is one diagnosable condition of a conversion run.
//
// Path is the layout path relative to the output root when one exists.
// Node is the dotted instance path ("Workspace.Map.Spawn") and locates the
// condition in the input tree.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Path is the affected layout path, if any.
	Path string

	// Node is the affected instance's dotted path.
	Node string

	// Property names the affected property (CodeInvalidProperty).
	Property string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Path != "" && e.Node != "":
		msg = fmt.Sprintf("%s (path=%s, node=%s)", msg, e.Path, e.Node)
	case e.Path != "":
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	case e.Node != "":
		msg = fmt.Sprintf("%s (node=%s)", msg, e.Node)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Severity returns the severity of the error's code.
func (e *Error) Severity() Severity {
	return e.Code.Severity()
}

// NewCollisionError reports a node whose name could not be made unique.
func NewCollisionError(node, dir, proposed string, err error) *Error {
	return &Error{
		Code:    CodeNameCollision,
		Message: fmt.Sprintf("cannot place %q", proposed),
		Path:    dir,
		Node:    node,
		Err:     err,
	}
}

// NewInvalidPropertyError reports a property dropped from a node.
func NewInvalidPropertyError(node, property string, err error) *Error {
	return &Error{
		Code:     CodeInvalidProperty,
		Message:  fmt.Sprintf("property %s dropped", property),
		Node:     node,
		Property: property,
		Err:      err,
	}
}

// NewWriteError reports a failed filesystem operation.
func NewWriteError(path, node string, err error) *Error {
	return &Error{
		Code:    CodeWriteFailure,
		Message: "write failed",
		Path:    path,
		Node:    node,
		Err:     err,
	}
}

// NewFallbackNotice reports a class projected through the fallback rule.
func NewFallbackNotice(node, class string) *Error {
	return &Error{
		Code:    CodeClassFallback,
		Message: fmt.Sprintf("class %s has no sync rule, written as plain directory", class),
		Node:    node,
	}
}

// NewCancelledError reports an aborted run.
func NewCancelledError(err error) *Error {
	return &Error{
		Code:    CodeCancelled,
		Message: "conversion cancelled",
		Err:     err,
	}
}

func hasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNameCollision returns true if err is an unresolved name collision.
// Uses errors.As to handle wrapped errors.
func IsNameCollision(err error) bool {
	return hasCode(err, CodeNameCollision)
}

// IsInvalidProperty returns true if err is a dropped property.
func IsInvalidProperty(err error) bool {
	return hasCode(err, CodeInvalidProperty)
}

// IsWriteFailure returns true if err is a filesystem write failure.
func IsWriteFailure(err error) bool {
	return hasCode(err, CodeWriteFailure)
}

// IsCancelled returns true if err reports an aborted run.
func IsCancelled(err error) bool {
	return hasCode(err, CodeCancelled)
}

// RunError is returned when a run had at least one fatal failure. It lists
// every failure in document order.
type RunError struct {
	Failures []*Error
}

func (e *RunError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("conversion failed: %v", e.Failures[0])
	}
	return fmt.Sprintf("conversion failed with %d errors (first: %v)", len(e.Failures), e.Failures[0])
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
