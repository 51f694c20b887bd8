// Package drivers resolves a native driver by name.
package drivers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/infrastructure/headless"
	"github.com/bnema/webloop/internal/infrastructure/webkit"
	"github.com/rs/zerolog"
)

// Auto picks the webkit driver when it is compiled in and can open a
// display, and the headless driver otherwise.
const Auto = "auto"

// Factory builds a driver.
type Factory func(logger zerolog.Logger) (port.Driver, error)

var factories = map[string]Factory{
	headless.Name: func(logger zerolog.Logger) (port.Driver, error) {
		return headless.New(logger), nil
	},
	webkit.Name: webkit.New,
}

// Names lists the registered driver names plus Auto.
func Names() []string {
	names := make([]string, 0, len(factories)+1)
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, Auto)
}

// Resolve returns the driver registered under name. An empty name means Auto.
func Resolve(name string, logger zerolog.Logger) (port.Driver, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Auto {
		return resolveAuto(logger)
	}
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return factory(logger)
}

func resolveAuto(logger zerolog.Logger) (port.Driver, error) {
	d, err := webkit.New(logger)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, port.ErrDriverUnavailable) {
		return nil, err
	}
	logger.Debug().Err(err).Msg("falling back to headless driver")
	return headless.New(logger), nil
}
