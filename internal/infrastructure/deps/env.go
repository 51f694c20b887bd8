package deps

import (
	"os"
	"path/filepath"
	"strings"
)

// commandEnv returns os.Environ with the pkg-config and library search
// paths of prefix prepended. An empty prefix returns the environment as is.
func commandEnv(prefix string) []string {
	base := os.Environ()
	if strings.TrimSpace(prefix) == "" {
		return base
	}

	env := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := env[k]; !seen {
			order = append(order, k)
		}
		env[k] = v
	}

	for k, values := range prefixPaths(prefix) {
		if _, seen := env[k]; !seen {
			order = append(order, k)
		}
		env[k] = prependPathList(env[k], values...)
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+env[k])
	}
	return out
}

func prefixPaths(prefix string) map[string][]string {
	prefix = filepath.Clean(prefix)
	libDirs := []string{"lib", "lib64", filepath.Join("lib", "x86_64-linux-gnu")}

	var pkgConfig, ldLibrary []string
	for _, dir := range libDirs {
		pkgConfig = append(pkgConfig, filepath.Join(prefix, dir, "pkgconfig"))
		ldLibrary = append(ldLibrary, filepath.Join(prefix, dir))
	}
	pkgConfig = append(pkgConfig, filepath.Join(prefix, "share", "pkgconfig"))

	return map[string][]string{
		"PKG_CONFIG_PATH": pkgConfig,
		"LD_LIBRARY_PATH": ldLibrary,
	}
}

// prependPathList puts values in front of the colon separated existing
// list, dropping duplicates and empty entries.
func prependPathList(existing string, values ...string) string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values)+4)

	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, v := range values {
		add(v)
	}
	if existing != "" {
		for _, v := range strings.Split(existing, ":") {
			add(v)
		}
	}
	return strings.Join(out, ":")
}
