package pending

import "context"

// Store persists the single pending-transaction slot. Read returns a nil record
// when no intent is in flight and a CORRUPT_RECORD error when the slot holds
// something that cannot be decoded.
type Store interface {
	Read(ctx context.Context) (*Record, error)
	Write(ctx context.Context, record Record) error
	Clear(ctx context.Context) error
}

// Locker is implemented by stores shared across processes. The returned
// function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func(context.Context) error, error)
}

// Pinger is implemented by stores backed by a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}
