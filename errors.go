package ext2img

import (
	"fmt"
	"syscall"
)

// DriverError is a wrapper around system errno codes, with a customizable
// error message. Command-line drivers exit with the errno carried here, so
// every error produced by the library must be (or wrap) a DriverError.
type DriverError struct {
	errnoCode syscall.Errno
	message   string
	cause     error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e *DriverError) Error() string {
	return e.message
}

// Errno returns the POSIX error number this error maps to.
func (e *DriverError) Errno() syscall.Errno {
	return e.errnoCode
}

func (e *DriverError) Unwrap() error {
	return e.cause
}

// Is reports whether `target` carries the same errno code. This makes
// errors.Is match any derived error against the package-level sentinels.
func (e *DriverError) Is(target error) bool {
	other, ok := target.(*DriverError)
	return ok && other.errnoCode == e.errnoCode
}

// WithMessage returns a copy of this error with `message` appended to the
// default errno description.
func (e *DriverError) WithMessage(message string) *DriverError {
	return &DriverError{
		errnoCode: e.errnoCode,
		message:   fmt.Sprintf("%s: %s", e.errnoCode.Error(), message),
		cause:     e,
	}
}

// Wrap returns a copy of this error recording `err` as its cause.
func (e *DriverError) Wrap(err error) *DriverError {
	return &DriverError{
		errnoCode: e.errnoCode,
		message:   fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		cause:     err,
	}
}

// NewDriverError creates a new DriverError with a default message derived
// from the system's error code.
func NewDriverError(errnoCode syscall.Errno) *DriverError {
	return &DriverError{
		errnoCode: errnoCode,
		message:   errnoCode.Error(),
	}
}

// NewDriverErrorWithMessage creates a new DriverError from a system error
// code with a custom message.
func NewDriverErrorWithMessage(errnoCode syscall.Errno, message string) *DriverError {
	return &DriverError{
		errnoCode: errnoCode,
		message:   fmt.Sprintf("%s: %s", errnoCode.Error(), message),
	}
}

var ErrNotFound = NewDriverError(syscall.ENOENT)
var ErrExists = NewDriverError(syscall.EEXIST)
var ErrIsADirectory = NewDriverError(syscall.EISDIR)
var ErrNoSpaceOnDevice = NewDriverError(syscall.ENOSPC)
var ErrNameTooLong = NewDriverError(syscall.ENAMETOOLONG)
var ErrFileTooLarge = NewDriverError(syscall.EFBIG)
var ErrInvalidArgument = NewDriverError(syscall.EINVAL)
var ErrIOFailed = NewDriverError(syscall.EIO)
var ErrFileSystemCorrupted = NewDriverError(syscall.EUCLEAN)
