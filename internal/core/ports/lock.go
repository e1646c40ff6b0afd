package ports

// Locker serializes package operations on a host. At most one plan
// execution runs at a time; the lock is held for the whole plan.
//
//go:generate mockgen -source=lock.go -destination=mocks/mock_lock.go -package=mocks
type Locker interface {
	// Acquire takes the host lock, returning ErrLockHeld if another
	// operation holds it. The returned release function must be called
	// once the operation completes.
	Acquire() (release func(), err error)
}
