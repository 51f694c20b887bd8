// Package remote drives an event loop hosted in another process. Requests
// and responses are JSON envelopes exchanged over a websocket; the server
// also pushes IPC messages and application events to every client.
package remote

import (
	"encoding/json"
	"fmt"
)

// MessageType names the kind of an envelope.
type MessageType string

// Requests.
const (
	TypeCreateWindow     MessageType = "create_window"
	TypeCloseWindow      MessageType = "close_window"
	TypeCreateWebView    MessageType = "create_webview"
	TypeEvaluateScript   MessageType = "evaluate_script"
	TypeLoadURL          MessageType = "load_url"
	TypeLoadHTML         MessageType = "load_html"
	TypeSetWindowVisible MessageType = "set_window_visible"
	TypeSetWindowTitle   MessageType = "set_window_title"
	TypeSend             MessageType = "send"
	TypeExit             MessageType = "exit"
	TypePing             MessageType = "ping"
)

// Responses and pushed events.
const (
	TypeSuccess          MessageType = "success"
	TypeError            MessageType = "error"
	TypePong             MessageType = "pong"
	TypeIPCMessage       MessageType = "ipc_message"
	TypeApplicationEvent MessageType = "application_event"
)

// Envelope is the unit exchanged on the wire. Responses carry the id of
// their request; pushed events have no id.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	WindowID  uint64          `json:"window_id,omitempty"`
	WebViewID uint64          `json:"webview_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CreateWindowPayload describes a window to build. Zero sizes keep the
// builder defaults.
type CreateWindowPayload struct {
	Title   string `json:"title,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

// InitScriptPayload is an initialization script.
type InitScriptPayload struct {
	Code string `json:"code"`
	Once bool   `json:"once,omitempty"`
}

// CreateWebViewPayload describes a webview. With a window_id in the
// envelope the view is attached to that window, otherwise it is standalone.
type CreateWebViewPayload struct {
	Label       string              `json:"label"`
	URL         string              `json:"url,omitempty"`
	HTML        string              `json:"html,omitempty"`
	Title       string              `json:"title,omitempty"`
	X           int                 `json:"x,omitempty"`
	Y           int                 `json:"y,omitempty"`
	Width       int                 `json:"width,omitempty"`
	Height      int                 `json:"height,omitempty"`
	UserAgent   string              `json:"user_agent,omitempty"`
	Devtools    *bool               `json:"devtools,omitempty"`
	InitScripts []InitScriptPayload `json:"init_scripts,omitempty"`
}

// ScriptPayload carries code to evaluate.
type ScriptPayload struct {
	Script string `json:"script"`
}

// URLPayload carries a URL to load.
type URLPayload struct {
	URL string `json:"url"`
}

// HTMLPayload carries markup to load.
type HTMLPayload struct {
	HTML string `json:"html"`
}

// VisiblePayload toggles window visibility.
type VisiblePayload struct {
	Visible bool `json:"visible"`
}

// TitlePayload sets a window title.
type TitlePayload struct {
	Title string `json:"title"`
}

// SendPayload is a host-to-page IPC message.
type SendPayload struct {
	Message string `json:"message"`
}

// ExitPayload carries the exit code of an exit request.
type ExitPayload struct {
	Code int `json:"code,omitempty"`
}

// SuccessPayload wraps the result of a request.
type SuccessPayload struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload reports a failed request. Kind is a stable classification
// of the error: validation, gone, navigation, script, devtools or request.
type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// WindowCreated is the data of a create_window success.
type WindowCreated struct {
	WindowID uint64 `json:"window_id"`
}

// WebViewCreated is the data of a create_webview success.
type WebViewCreated struct {
	WebViewID uint64 `json:"webview_id"`
	WindowID  uint64 `json:"window_id"`
	Label     string `json:"label"`
}

// ScriptResult is the data of an evaluate_script success: the JSON text
// of the script's value.
type ScriptResult struct {
	Result string `json:"result"`
}

// IPCMessagePayload is a page-to-host message pushed to clients.
type IPCMessagePayload struct {
	Label string `json:"label"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// ApplicationEventPayload is an event loop event pushed to clients.
type ApplicationEventPayload struct {
	Event string `json:"event"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func newEnvelope(id string, typ MessageType, payload any) (Envelope, error) {
	env := Envelope{ID: id, Type: typ}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e Envelope) decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
