package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// PermissionError means the actor lacks the capability required by an operation.
type PermissionError struct {
	Capability string
}

func NewPermissionError(capability string) error {
	return &PermissionError{Capability: capability}
}

func (err PermissionError) Error() string { return "permission denied" }

// DuplicateError is a uniqueness violation, e.g. a track suggested twice.
type DuplicateError struct {
	Resource string
	Key      string
}

func NewDuplicateError(resource, key string) error {
	return &DuplicateError{Resource: resource, Key: key}
}

func (err DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", err.Resource, err.Key)
}

// AuthRequiredError means no usable delegated credential exists: an admin must reauthenticate
// with the external service. It is not a permission problem of the caller.
type AuthRequiredError struct {
	Reason string
}

func NewAuthRequiredError(reason string) error {
	return &AuthRequiredError{Reason: reason}
}

func (err AuthRequiredError) Error() string { return err.Reason }

type InsufficientPointsError struct {
	Have int
	Need int
}

func NewInsufficientPointsError(have, need int) error {
	return &InsufficientPointsError{Have: have, Need: need}
}

func (err InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", err.Have, err.Need)
}

// RemoteMutationError means the external service refused to add or remove a track.
type RemoteMutationError struct {
	Op  string
	Err error
}

func NewRemoteMutationError(op string, err error) error {
	return &RemoteMutationError{Op: op, Err: err}
}

func (err RemoteMutationError) Error() string {
	if err.Err != nil {
		return err.Op + ": " + err.Err.Error()
	}
	return err.Op + ": rejected by remote service"
}

// RemoteServiceError is a transport failure or a non-2xx response from the external API.
// Body is kept for logs only and must never reach a client.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (err RemoteServiceError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %v", err.Op, err.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", err.Op, err.StatusCode, err.Body)
}

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string { return err.Resource + " not found" }

type BadRequestError struct {
	Reason string
}

func NewBadRequestError(reason string) error {
	return &BadRequestError{Reason: reason}
}

func (err BadRequestError) Error() string { return err.Reason }

// InvalidTransitionError is returned when a status change is attempted from a terminal state.
type InvalidTransitionError struct {
	Resource string
	From     string
	To       string
}

func NewInvalidTransitionError(resource, from, to string) error {
	return &InvalidTransitionError{Resource: resource, From: from, To: to}
}

func (err InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot go from %s to %s", err.Resource, err.From, err.To)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
