package storage

import (
	"errors"
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
)

var (
	ErrStorageUnavailable = errors.New("storage: persistent medium unavailable")
	ErrNotFound           = errors.New("storage: no record matches the query")
	ErrInternal           = errors.New("storage: internal error")
)

// ErrExistButTooRecent describes a record that satisfies a query's other
// predicates but postdates the query's upper time bound. Query and
// UpdateScope.Query never return it: they leave such records out of the
// result and report ErrNotFound when nothing else matches.
type ErrExistButTooRecent struct {
	StrictlyGreaterThan certtypes.Timestamp
}

func (e *ErrExistButTooRecent) Error() string {
	return fmt.Sprintf("storage: matching record exists but postdates query bound (next: %d)", e.StrictlyGreaterThan)
}
