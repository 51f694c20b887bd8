// Package console is an interactive client for a remote event loop.
package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bnema/webloop/internal/remote"
)

// Remote is the part of *remote.Client the console drives.
type Remote interface {
	Ping(ctx context.Context) error
	CreateWindow(ctx context.Context, p remote.CreateWindowPayload) (uint64, error)
	CloseWindow(ctx context.Context, windowID uint64) error
	CreateWebView(ctx context.Context, windowID uint64, p remote.CreateWebViewPayload) (remote.WebViewCreated, error)
	EvaluateScript(ctx context.Context, webviewID uint64, script string) (string, error)
	LoadURL(ctx context.Context, webviewID uint64, url string) error
	LoadHTML(ctx context.Context, webviewID uint64, html string) error
	SetWindowVisible(ctx context.Context, windowID uint64, visible bool) error
	SetWindowTitle(ctx context.Context, windowID uint64, title string) error
	Send(ctx context.Context, webviewID uint64, msg string) error
	Exit(ctx context.Context, code int) error
}

var _ Remote = (*remote.Client)(nil)

// ErrUsage is wrapped by errors caused by a malformed command line.
var ErrUsage = errors.New("usage")

type command struct {
	usage string
	// fields is the number of leading whitespace-separated arguments; the
	// rest of the line, if any, is passed verbatim as one more argument.
	fields int
	rest   bool
	run    func(ctx context.Context, r Remote, args []string) (string, error)
}

var commands = map[string]command{
	"ping": {
		usage: "ping",
		run: func(ctx context.Context, r Remote, _ []string) (string, error) {
			if err := r.Ping(ctx); err != nil {
				return "", err
			}
			return "pong", nil
		},
	},
	"window": {
		usage: "window <title>",
		rest:  true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := r.CreateWindow(ctx, remote.CreateWindowPayload{Title: args[0]})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("window %d", id), nil
		},
	},
	"close": {
		usage:  "close <window-id>",
		fields: 1,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return "", r.CloseWindow(ctx, id)
		},
	},
	"title": {
		usage:  "title <window-id> <title>",
		fields: 1,
		rest:   true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return "", r.SetWindowTitle(ctx, id, args[1])
		},
	},
	"show": {
		usage:  "show <window-id>",
		fields: 1,
		run:    visibility(true),
	},
	"hide": {
		usage:  "hide <window-id>",
		fields: 1,
		run:    visibility(false),
	},
	"view": {
		usage:  "view <window-id|0> <label> <url|html>",
		fields: 2,
		rest:   true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			windowID, err := parseWindowID(args[0])
			if err != nil {
				return "", err
			}
			p := remote.CreateWebViewPayload{Label: args[1]}
			if looksLikeHTML(args[2]) {
				p.HTML = args[2]
			} else {
				p.URL = args[2]
			}
			created, err := r.CreateWebView(ctx, windowID, p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("webview %d (%s)", created.WebViewID, created.Label), nil
		},
	},
	"eval": {
		usage:  "eval <webview-id> <script>",
		fields: 1,
		rest:   true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return r.EvaluateScript(ctx, id, args[1])
		},
	},
	"load": {
		usage:  "load <webview-id> <url>",
		fields: 2,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return "", r.LoadURL(ctx, id, args[1])
		},
	},
	"html": {
		usage:  "html <webview-id> <markup>",
		fields: 1,
		rest:   true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return "", r.LoadHTML(ctx, id, args[1])
		},
	},
	"send": {
		usage:  "send <webview-id> <message>",
		fields: 1,
		rest:   true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			id, err := parseID(args[0])
			if err != nil {
				return "", err
			}
			return "", r.Send(ctx, id, args[1])
		},
	},
	"exit": {
		usage: "exit [code]",
		rest:  true,
		run: func(ctx context.Context, r Remote, args []string) (string, error) {
			code := 0
			if args[0] != "" {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return "", fmt.Errorf("%w: exit code %q is not a number", ErrUsage, args[0])
				}
				code = n
			}
			return "", r.Exit(ctx, code)
		},
	},
}

// optionalRest lists commands whose trailing argument may be empty.
var optionalRest = map[string]bool{"exit": true}

// Usage returns one usage line per command, sorted.
func Usage() []string {
	lines := make([]string, 0, len(commands))
	for _, c := range commands {
		lines = append(lines, c.usage)
	}
	sort.Strings(lines)
	return lines
}

// Execute parses line and runs it against r. It returns the text to show
// on success, which may be empty.
func Execute(ctx context.Context, r Remote, line string) (string, error) {
	name, rest := cut(strings.TrimSpace(line))
	if name == "" {
		return "", fmt.Errorf("%w: empty command", ErrUsage)
	}
	cmd, ok := commands[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}

	args := make([]string, 0, cmd.fields+1)
	for range cmd.fields {
		var field string
		field, rest = cut(rest)
		if field == "" {
			return "", fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
		}
		args = append(args, field)
	}
	if cmd.rest {
		if rest == "" && !optionalRest[name] {
			return "", fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
		}
		args = append(args, rest)
	} else if rest != "" {
		return "", fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}

	return cmd.run(ctx, r, args)
}

// cut splits off the first whitespace-separated field of s.
func cut(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q is not an id", ErrUsage, s)
	}
	return id, nil
}

// parseWindowID accepts 0 for a standalone webview.
func parseWindowID(s string) (uint64, error) {
	if s == "0" {
		return 0, nil
	}
	return parseID(s)
}

func looksLikeHTML(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "<")
}

func visibility(visible bool) func(ctx context.Context, r Remote, args []string) (string, error) {
	return func(ctx context.Context, r Remote, args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		return "", r.SetWindowVisible(ctx, id, visible)
	}
}
