//go:build !webkit_cgo

package webkit

import (
	"fmt"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/rs/zerolog"
)

// Available reports whether the driver was compiled in.
const Available = false

// New reports the driver unavailable: the binary was built without webkit_cgo.
func New(zerolog.Logger) (port.Driver, error) {
	return nil, fmt.Errorf("%w: %s (build with -tags webkit_cgo)", port.ErrDriverUnavailable, Name)
}
