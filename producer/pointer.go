package producer

import (
	"github.com/pkg/errors"

	"github.com/outofforest/replica/types"
)

// ErrInvalidState is returned if pointer transition is not allowed in its current state.
var ErrInvalidState = errors.New("invalid pointer state")

// NewPointer creates pointer with no pending version.
func NewPointer(current types.Version) Pointer {
	return Pointer{
		current: current,
		pending: types.VersionNull,
	}
}

// Pointer pairs the committed version with the one being staged.
// Transitions never modify the pointer, they return the new one.
type Pointer struct {
	current    types.Version
	pending    types.Version
	hasPending bool
}

// Current returns the committed version.
func (p Pointer) Current() types.Version {
	return p.current
}

// Pending returns the staged version.
func (p Pointer) Pending() (types.Version, bool) {
	return p.pending, p.hasPending
}

// Round starts staging the version.
func (p Pointer) Round(version types.Version) (Pointer, error) {
	if p.hasPending {
		return p, errors.Wrapf(ErrInvalidState, "version %d is pending, attempt to round %d", p.pending, version)
	}
	return Pointer{
		current:    p.current,
		pending:    version,
		hasPending: true,
	}, nil
}

// Commit makes the pending version current.
func (p Pointer) Commit() (Pointer, error) {
	if !p.hasPending {
		return p, errors.Wrap(ErrInvalidState, "attempt to commit non-pending version")
	}
	return NewPointer(p.pending), nil
}

// Rollback discards the pending version.
func (p Pointer) Rollback() (Pointer, error) {
	if !p.hasPending {
		return p, errors.Wrap(ErrInvalidState, "attempt to rollback non-pending version")
	}
	return NewPointer(p.current), nil
}
