package apperror

// Constructors for the specific failure modes named in spec.md §6.5.

// NewValueError reports a caller validation failure: malformed path,
// non-serializable payload, unknown state name, wrong argument type.
func NewValueError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

// NewQueueFull reports that a job-queue push found no FREE slot.
func NewQueueFull(path string) *AppError {
	return New(ErrorTypeCapacity, "queue full").WithDetailsf("path: %s", path)
}

// NewNoSlotAvailable reports that an RPC-server push found no empty slot.
func NewNoSlotAvailable(serverPath string) *AppError {
	return New(ErrorTypeCapacity, "no slot available").WithDetailsf("server_path: %s", serverPath)
}

// NewReplyInboxFull reports that an RPC-client push_reply found no FREE slot.
func NewReplyInboxFull(clientPath string) *AppError {
	return New(ErrorTypeCapacity, "reply inbox full").WithDetailsf("client_path: %s", clientPath)
}

// NewNoMatchingRecord reports that a state machine transition targeted a row
// that does not exist, or does not match the expected precondition.
func NewNoMatchingRecord(resource string) *AppError {
	return New(ErrorTypeNotFound, "no matching record").WithDetailsf("resource: %s", resource)
}

// NewRetryExhausted reports that a contention-error retry budget was spent.
func NewRetryExhausted(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeContention, "retry exhausted: %s", operation)
}

// NewInstallationFailed reports a builder/reconciler consistency failure:
// path-stack imbalance or a unique-path collision.
func NewInstallationFailed(reason string, cause error) *AppError {
	return Wrap(cause, ErrorTypeConsistency, "installation failed").WithDetails(reason)
}

// NewStoreError reports a collaborator-layer failure (connection closed,
// protocol failure) surfaced unchanged per spec.md §7 category 5.
func NewStoreError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeStore, "store error during %s", operation)
}
