// Package webkit implements the GTK4 / WebKitGTK 6 native driver. The real
// driver needs cgo and the system libraries and is only compiled with the
// webkit_cgo build tag; otherwise New reports the driver unavailable.
package webkit

import (
	"fmt"
	"strings"

	"github.com/bnema/webloop/internal/application/port"
)

// Name is the registry name of the driver.
const Name = "webkit"

// MessageHandlerName is the UserContentManager script message handler pages post through.
const MessageHandlerName = "webloop"

// shimScript defines the native post function on top of the script message
// handler. It is installed ahead of every other user script.
func shimScript() string {
	return fmt.Sprintf(
		`window.%s = function (m) { window.webkit.messageHandlers.%s.postMessage(String(m)); };`,
		port.NativePostFunction, MessageHandlerName,
	)
}

// navigationScripts returns the user scripts of one navigation, shim first.
func navigationScripts(nav port.Navigation) []string {
	out := make([]string, 0, len(nav.Scripts)+1)
	out = append(out, shimScript())
	return append(out, nav.Scripts...)
}

// loadTarget returns what WebKit should load for nav and whether it is inline markup.
func loadTarget(nav port.Navigation) (content string, inline bool) {
	if nav.HTML != "" {
		return nav.HTML, true
	}
	if nav.URL == "" {
		return "about:blank", false
	}
	return nav.URL, false
}

// surfaceSpec is the top-level window of a standalone view.
func surfaceSpec(spec port.ViewSpec) port.WindowSpec {
	return port.WindowSpec{
		Title:       spec.Title,
		Bounds:      spec.Bounds,
		Resizable:   spec.Resizable,
		Decorated:   spec.Decorated,
		Visible:     spec.Visible,
		Focused:     spec.Focused,
		Menubar:     spec.Menubar,
		AlwaysOnTop: spec.AlwaysOnTop,
		Transparent: spec.Transparent,
		Maximized:   spec.Maximized,
		Theme:       spec.Theme,
	}
}

// isCancellation reports a load failure caused by a newer load replacing the
// current one. WebKit reports those as failures of the replaced load.
func isCancellation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cancelled") || strings.Contains(msg, "canceled")
}
