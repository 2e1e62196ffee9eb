// Package slots stores small named values that every worker process shares,
// such as the serialized offload queue.
package slots

import "context"

type Repository interface {
	// Get returns (nil, nil) when the slot does not exist.
	Get(ctx context.Context, name string) ([]byte, error)
	// GetForUpdate is Get that also locks the row until the surrounding
	// transaction ends, where the dialect supports it.
	GetForUpdate(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
}
