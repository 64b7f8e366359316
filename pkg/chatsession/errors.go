package chatsession

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
)

var ErrEmptyMessage = errors.New("message is empty")

// PreconditionError reports a user action rejected locally. Nothing was sent.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

var preconditions = []error{
	ErrEmptyMessage,
	connection.ErrNotConnected,
	selection.ErrNoProfile,
	selection.ErrNoPackage,
	selection.ErrUnknownProfile,
	selection.ErrUnknownPackage,
}

// asPrecondition wraps err in a PreconditionError when it is one of the
// local validation failures and returns it unchanged otherwise.
func asPrecondition(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range preconditions {
		if errors.Is(err, target) {
			return &PreconditionError{Op: op, Err: err}
		}
	}
	return err
}
