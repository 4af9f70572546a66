package schedule

import "context"

// Store is the durable recipient → Record mapping.
//
// Every mutating call is atomic with respect to the durable representation and
// serialised with every other mutation. Implementations keep no cache that could
// diverge from disk.
type Store interface {
	Get(ctx context.Context, recipientID string) (Record, bool, error)
	// List returns a consistent snapshot of all records.
	List(ctx context.Context) ([]Record, error)
	Upsert(ctx context.Context, rec Record) error
	// Update runs fn on the current record (zero Record + found=false if absent)
	// inside the store's critical section and persists the result. If fn returns
	// ErrNoChange nothing is written and Update returns nil; any other error aborts.
	Update(ctx context.Context, recipientID string, fn func(rec *Record, found bool) error) error
	Delete(ctx context.Context, recipientID string) (bool, error)
	Close() error
}
