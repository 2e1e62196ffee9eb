package common

// Names of the durable slots and locks shared by every worker process.
const (
	QueueSlotName  = "offload_queue"
	WorkerLockName = "offload_worker"
)

// AuthorizationHeaderName carries the hook bearer token.
const AuthorizationHeaderName = "Authorization"
