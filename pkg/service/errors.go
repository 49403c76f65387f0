// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates a malformed rule, graph or definition.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing or cross-tenant segment, journey or incentive.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a resource is not in the status the operation expects.
	ErrConflict = errors.New("conflict")

	// ErrCapacity indicates a per-user incentive cap was reached.
	ErrCapacity = errors.New("capacity reached")

	// ErrDelivery indicates a channel send failed.
	ErrDelivery = errors.New("delivery failed")

	// ErrStore indicates the underlying persistence failed.
	ErrStore = errors.New("store failure")
)

// Error codes carried by ServiceError.
const (
	CodeValidation = "VALIDATION"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeCapacity   = "CAPACITY"
	CodeDelivery   = "DELIVERY"
	CodeStore      = "STORE"
)

// ServiceError is a classified failure of a side-effecting operation.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *ServiceError) Is(target error) bool {
	return sentinelFor(e.Code) == target
}

// ValidationError carries every reason a definition was rejected.
type ValidationError struct {
	Op      string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed:\n  - %s", e.Op, strings.Join(e.Reasons, "\n  - "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func sentinelFor(code string) error {
	switch code {
	case CodeValidation:
		return ErrValidation
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return ErrConflict
	case CodeCapacity:
		return ErrCapacity
	case CodeDelivery:
		return ErrDelivery
	case CodeStore:
		return ErrStore
	}
	return nil
}

func NewValidationError(op string, reasons []string) *ValidationError {
	return &ValidationError{Op: op, Reasons: reasons}
}

func NewNotFoundError(op, kind, id string) *ServiceError {
	return &ServiceError{Op: op, Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func NewConflictError(op, message string) *ServiceError {
	return &ServiceError{Op: op, Code: CodeConflict, Message: message}
}

func NewCapacityError(op, message string) *ServiceError {
	return &ServiceError{Op: op, Code: CodeCapacity, Message: message}
}

func NewDeliveryError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: CodeDelivery, Message: "channel send failed", Err: err}
}

// NewStoreError wraps a persistence failure. Errors already classified pass through unchanged.
func NewStoreError(op string, err error) error {
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Op: op, Code: CodeStore, Message: "store operation failed", Err: err}
}

func IsValidationError(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool        { return errors.Is(err, ErrConflict) }
func IsCapacityError(err error) bool   { return errors.Is(err, ErrCapacity) }
func IsDeliveryError(err error) bool   { return errors.Is(err, ErrDelivery) }
func IsStoreError(err error) bool      { return errors.Is(err, ErrStore) }

// ValidationReasons returns the reasons of a ValidationError, or nil.
func ValidationReasons(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reasons
	}
	return nil
}

// ItemError records the failure of one item in a batch.
type ItemError struct {
	ID  string
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e ItemError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}{e.ID, msg})
}

// BatchResult reports the outcome of a batch operation. Batches never fail as a whole
// because of a single item.
type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Skipped   int         `json:"skipped"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// AddError appends a per-item failure.
func (r *BatchResult) AddError(id string, err error) {
	r.Errors = append(r.Errors, ItemError{ID: id, Err: err})
}

// Merge folds another result into r.
func (r *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	r.Succeeded += other.Succeeded
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}
