package domain

import "context"

// Lease elects one instance to run singleton background jobs.
type Lease interface {
	TryAcquire(ctx context.Context) (bool, error)
	// Renew fails once another instance holds the lease.
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}
