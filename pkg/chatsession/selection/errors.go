package selection

import "github.com/pkg/errors"

var (
	ErrNoProfile      = errors.New("no profile selected")
	ErrNoPackage      = errors.New("no package selected")
	ErrUnknownProfile = errors.New("unknown profile")
	ErrUnknownPackage = errors.New("package not offered by the selected profile")
)
