package connection

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by Send when the connection is not open.
	// Nothing is written in that case.
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("connection already open or connecting")
)

// TransportError wraps a dial, read or write failure of the underlying
// transport. It is reported to the Handler, never returned from Connect.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
