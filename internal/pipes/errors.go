package pipes

import "errors"

// Pipe engine errors. Operations wrap these with fmt.Errorf("%w: ...") so
// callers can classify failures with errors.Is.
var (
	// ErrOperationNotFound is returned when executing an unregistered name.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrInvalidOperation is returned when registering a nil function or an empty name.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrContractViolation is returned when a built-in receives the wrong
	// number of arguments or a value of the wrong type.
	ErrContractViolation = errors.New("operation contract violated")

	// ErrRateLimited is returned by file operations when the read budget is exhausted.
	ErrRateLimited = errors.New("file read rate limit exceeded")

	// ErrFileNotFound is returned by file operations for missing files.
	ErrFileNotFound = errors.New("file not found")

	// ErrPathRejected is returned when a path matches the blocklist.
	ErrPathRejected = errors.New("path rejected")

	// ErrParse is returned when a document cannot be parsed.
	ErrParse = errors.New("parse error")

	// ErrInvalidModule is returned when a custom operation module has an
	// unsupported shape or cannot be interpreted.
	ErrInvalidModule = errors.New("invalid operation module")

	// ErrInvalidRate is returned when constructing a rate limiter with a non-positive rate.
	ErrInvalidRate = errors.New("maxPerSecond must be greater than 0")

	// ErrWatcherStopped is returned by Watcher.Start after Stop.
	ErrWatcherStopped = errors.New("watcher already stopped")
)
