package mediarepo

import (
	"errors"
	"fmt"
)

// Repository errors
var (
	// ErrResourceNotFound indicates a resource, or the node structure backing it, was not found
	ErrResourceNotFound = errors.New("resource not found")

	// ErrResourceAlreadyExists indicates a resource with the same name already exists below its mime type node
	ErrResourceAlreadyExists = errors.New("resource already exists")

	// ErrMimeTypeNotSupported indicates an unknown mime type wire string
	ErrMimeTypeNotSupported = errors.New("mime type not supported")

	// ErrCategoryTypeNotSupported indicates an unknown category name
	ErrCategoryTypeNotSupported = errors.New("category type not supported")

	// ErrEncodingTypeNotSupported indicates an unknown binary encoding
	ErrEncodingTypeNotSupported = errors.New("encoding type not supported")

	// ErrFileSizeLimitExceeded indicates a payload larger than the configured maximum
	ErrFileSizeLimitExceeded = errors.New("file size limit exceeded")

	// ErrSessionExpired indicates an operation on a session that is no longer live
	ErrSessionExpired = errors.New("session expired")
)

// Content store errors. Store implementations return these (possibly wrapped).
var (
	ErrPathNotFound           = errors.New("path not found")
	ErrItemExists             = errors.New("item already exists")
	ErrLoginFailed            = errors.New("login failed")
	ErrNamespaceExists        = errors.New("namespace already registered")
	ErrNamespaceNotRegistered = errors.New("namespace not registered")
	ErrNoSuchNodeType         = errors.New("no such node type")
	ErrConstraintViolation    = errors.New("constraint violation")
	ErrInvalidItemState       = errors.New("invalid item state")
	ErrInvalidNodeName        = errors.New("invalid node name")
	ErrValueFormat            = errors.New("value format error")
)

// ResourceError represents a failed repository operation on a resource path
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource operation %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NotSupportedError represents an unrecognized enum literal
type NotSupportedError struct {
	Kind  string
	Value string
	Err   error
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s %q not supported", e.Kind, e.Value)
}

func (e *NotSupportedError) Unwrap() error {
	return e.Err
}

// FileSizeError reports a payload that exceeds the configured limit
type FileSizeError struct {
	FileName string
	Size     int64
	Limit    int64
}

func (e *FileSizeError) Error() string {
	return fmt.Sprintf("file %s has %d bytes, limit is %d", e.FileName, e.Size, e.Limit)
}

func (e *FileSizeError) Unwrap() error {
	return ErrFileSizeLimitExceeded
}

// IsNotFound reports whether err means a missing resource or store path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrPathNotFound)
}

func notFound(op, path string) error {
	return &ResourceError{Op: op, Path: path, Err: ErrResourceNotFound}
}
