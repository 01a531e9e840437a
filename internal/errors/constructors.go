package errors

// Convenience constructors for common error patterns

// ValidationError reports malformed input. Recoverable; no state change.
func ValidationError(message string) *TrackerError {
	return New(CategoryValidation, SeverityWarning, message)
}

// NotFoundError reports an operation referencing an unknown timer id.
func NotFoundError(timerID string) *TrackerError {
	return New(CategoryNotFound, SeverityWarning, "timer not found").
		WithContext("timer_id", timerID)
}

// DuplicateNameError reports a name collision on create or rename.
func DuplicateNameError(name string) *TrackerError {
	return New(CategoryDuplicateName, SeverityWarning, "timer name already in use").
		WithContext("name", name)
}

// PersistenceError wraps a storage write/read failure. Fatal to the
// attempted operation (the in-memory mutation is rolled back) but not to
// the process; retryable from the caller's perspective.
func PersistenceError(operation string, cause error) *TrackerError {
	e := Wrap(cause, CategoryPersistence, SeverityError, "persistence failed").
		WithContext("operation", operation)
	e.Retryable = true
	return e
}

// CorruptDataError reports a collection file that failed shape validation
// at load time. Handled by the store itself via backup-and-reset; never
// propagates past startup.
func CorruptDataError(collection string, cause error) *TrackerError {
	return Wrap(cause, CategoryCorrupt, SeverityWarning, "corrupt collection file").
		WithContext("collection", collection)
}

// InternalError reports an invariant violation (programmer error).
func InternalError(message string) *TrackerError {
	return New(CategoryInternal, SeverityFatal, message)
}

// ConfigError reports a configuration problem.
func ConfigError(message string) *TrackerError {
	return New(CategoryConfig, SeverityFatal, message)
}
