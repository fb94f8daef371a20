package ioc

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry operations.
var (
	ErrServiceNotFound      = errors.New("ioc: service not found")
	ErrWrongServiceType     = errors.New("ioc: service does not implement requested interface")
	ErrNoServiceForType     = errors.New("ioc: no service implements interface")
	ErrAmbiguousServiceType = errors.New("ioc: multiple services implement interface")
	ErrRegistryLocked       = errors.New("ioc: registry is locked")
	ErrRegistryShutdown     = errors.New("ioc: registry has been shut down")
	ErrNoProxyFactory       = errors.New("ioc: no proxy factory for interface")
	ErrUnknownScope         = errors.New("ioc: unknown service scope")
	ErrNotInjectable        = errors.New("ioc: parameter is not injectable")
	ErrInvalidConstructor   = errors.New("ioc: invalid constructor")
)

// ServiceError reports a failure while realizing a service. Description
// names the builder, decorator or constructor that failed.
type ServiceError struct {
	ServiceID   string
	Description string
	Err         error
}

func (e *ServiceError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("ioc: error building service %q (%s): %v", e.ServiceID, e.Description, e.Err)
	}
	return fmt.Sprintf("ioc: error building service %q: %v", e.ServiceID, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// RecursionError reports a service whose construction path requires the
// service itself.
type RecursionError struct {
	ServiceID   string
	Description string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("ioc: construction of service %q has failed due to recursion: "+
		"the service depends on itself in some way; check %s for references to another "+
		"service that is itself dependent on %q", e.ServiceID, e.Description, e.ServiceID)
}

// IsRecursion checks if err is, or wraps, a RecursionError.
func IsRecursion(err error) bool {
	var re *RecursionError
	return errors.As(err, &re)
}

// IsNotFound checks if err is a missing-service error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

func wrapServiceError(id, description string, err error) error {
	var se *ServiceError
	if errors.As(err, &se) && se.ServiceID == id {
		return err
	}
	return &ServiceError{ServiceID: id, Description: description, Err: err}
}
