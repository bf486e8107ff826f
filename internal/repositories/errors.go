package repositories

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing record by resource name and key.
type NotFoundError struct {
	Resource string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with key %v", e.Resource, e.Key)
}

func NewNotFoundError(resource string, key any) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// IsNotFoundError reports whether err is (or wraps) a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
