// Package deps probes the native libraries the webkit driver links against.
package deps

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrPkgConfigMissing indicates pkg-config is not available on the host.
	ErrPkgConfigMissing = errors.New("pkg-config missing")
	// ErrPackageMissing indicates the requested .pc package was not found.
	ErrPackageMissing = errors.New("pkg-config package missing")
)

// WebKitPackages are the pkg-config modules required by the webkit driver.
var WebKitPackages = []string{"gtk4", "webkitgtk-6.0", "javascriptcoregtk-6.0"}

// PackageError wraps a failed pkg-config lookup.
type PackageError struct {
	Package string
	Output  string
	Err     error
}

func (e *PackageError) Error() string {
	msg := fmt.Sprintf("pkg-config: %s", e.Package)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg + ": " + e.Err.Error()
}

func (e *PackageError) Unwrap() error {
	return e.Err
}

// PackageStatus is the result of probing one package.
type PackageStatus struct {
	Package string
	Version string
	Err     error
}

// Prober queries module versions with pkg-config.
type Prober struct {
	// Prefix adds a manual install prefix to the search paths.
	Prefix string

	lookPath func(string) (string, error)
}

func NewProber(prefix string) *Prober {
	return &Prober{Prefix: prefix, lookPath: exec.LookPath}
}

// ModVersion returns the version of pkgName.
func (p *Prober) ModVersion(ctx context.Context, pkgName string) (string, error) {
	pc, err := p.lookPath("pkg-config")
	if err != nil {
		return "", &PackageError{Package: pkgName, Err: ErrPkgConfigMissing}
	}

	cmd := exec.CommandContext(ctx, pc, "--modversion", pkgName)
	cmd.Env = commandEnv(p.Prefix)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &PackageError{
			Package: pkgName,
			Output:  strings.TrimSpace(string(out)),
			Err:     ErrPackageMissing,
		}
	}
	return strings.TrimSpace(string(out)), nil
}

// ProbeAll probes every package in order.
func (p *Prober) ProbeAll(ctx context.Context, packages []string) []PackageStatus {
	out := make([]PackageStatus, 0, len(packages))
	for _, pkg := range packages {
		version, err := p.ModVersion(ctx, pkg)
		out = append(out, PackageStatus{Package: pkg, Version: version, Err: err})
	}
	return out
}
