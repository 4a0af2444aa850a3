package headerstore

import (
	stderrors "errors"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for expected, recoverable conditions: callers are meant
// to branch on these with errors.Is, mirroring the teacher's
// consensus/forkchoice.go (ErrUnknownParent, ErrDuplicateBlock, ...).
var (
	ErrNotFound       = stderrors.New("headerstore: not found")
	ErrAlreadyExists  = stderrors.New("headerstore: header already exists")
	ErrMissingParent  = stderrors.New("headerstore: missing parent")
	ErrInvalidGenesis = stderrors.New("headerstore: genesis headers must be inserted via InsertGenesis")
	ErrMissingHead    = stderrors.New("headerstore: no leaves present")
)

// errCorruption wraps an on-disk inconsistency with a stack trace via
// github.com/cockroachdb/errors. Unlike the sentinels above, corruption is
// not something a caller branches on -- it needs full diagnostic context,
// so it carries a stack trace and the operation that observed it.
func errCorruption(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, "headerstore: corrupt on-disk state: "+format, args...)
}
