package console

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/webloop/internal/remote"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockRemote) CreateWindow(ctx context.Context, p remote.CreateWindowPayload) (uint64, error) {
	args := m.Called(p)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockRemote) CloseWindow(ctx context.Context, windowID uint64) error {
	return m.Called(windowID).Error(0)
}

func (m *mockRemote) CreateWebView(ctx context.Context, windowID uint64, p remote.CreateWebViewPayload) (remote.WebViewCreated, error) {
	args := m.Called(windowID, p)
	return args.Get(0).(remote.WebViewCreated), args.Error(1)
}

func (m *mockRemote) EvaluateScript(ctx context.Context, webviewID uint64, script string) (string, error) {
	args := m.Called(webviewID, script)
	return args.String(0), args.Error(1)
}

func (m *mockRemote) LoadURL(ctx context.Context, webviewID uint64, url string) error {
	return m.Called(webviewID, url).Error(0)
}

func (m *mockRemote) LoadHTML(ctx context.Context, webviewID uint64, html string) error {
	return m.Called(webviewID, html).Error(0)
}

func (m *mockRemote) SetWindowVisible(ctx context.Context, windowID uint64, visible bool) error {
	return m.Called(windowID, visible).Error(0)
}

func (m *mockRemote) SetWindowTitle(ctx context.Context, windowID uint64, title string) error {
	return m.Called(windowID, title).Error(0)
}

func (m *mockRemote) Send(ctx context.Context, webviewID uint64, msg string) error {
	return m.Called(webviewID, msg).Error(0)
}

func (m *mockRemote) Exit(ctx context.Context, code int) error {
	return m.Called(code).Error(0)
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		setup  func(m *mockRemote)
		result string
	}{
		{
			name:   "ping",
			line:   "ping",
			setup:  func(m *mockRemote) { m.On("Ping").Return(nil) },
			result: "pong",
		},
		{
			name: "window keeps spaces in title",
			line: "window  my  window",
			setup: func(m *mockRemote) {
				m.On("CreateWindow", remote.CreateWindowPayload{Title: "my  window"}).Return(uint64(4), nil)
			},
			result: "window 4",
		},
		{
			name:  "close",
			line:  "close 4",
			setup: func(m *mockRemote) { m.On("CloseWindow", uint64(4)).Return(nil) },
		},
		{
			name:  "title",
			line:  "title 2 new title",
			setup: func(m *mockRemote) { m.On("SetWindowTitle", uint64(2), "new title").Return(nil) },
		},
		{
			name:  "show",
			line:  "show 2",
			setup: func(m *mockRemote) { m.On("SetWindowVisible", uint64(2), true).Return(nil) },
		},
		{
			name:  "hide",
			line:  "hide 2",
			setup: func(m *mockRemote) { m.On("SetWindowVisible", uint64(2), false).Return(nil) },
		},
		{
			name: "standalone view with url",
			line: "view 0 main https://example.com",
			setup: func(m *mockRemote) {
				m.On("CreateWebView", uint64(0), remote.CreateWebViewPayload{Label: "main", URL: "https://example.com"}).
					Return(remote.WebViewCreated{WebViewID: 7, Label: "main"}, nil)
			},
			result: "webview 7 (main)",
		},
		{
			name: "attached view with html",
			line: "view 3 side <p>hello world</p>",
			setup: func(m *mockRemote) {
				m.On("CreateWebView", uint64(3), remote.CreateWebViewPayload{Label: "side", HTML: "<p>hello world</p>"}).
					Return(remote.WebViewCreated{WebViewID: 8, WindowID: 3, Label: "side"}, nil)
			},
			result: "webview 8 (side)",
		},
		{
			name:   "eval keeps the whole script",
			line:   "eval 7 1 + 2",
			setup:  func(m *mockRemote) { m.On("EvaluateScript", uint64(7), "1 + 2").Return("3", nil) },
			result: "3",
		},
		{
			name:  "load",
			line:  "load 7 about:blank",
			setup: func(m *mockRemote) { m.On("LoadURL", uint64(7), "about:blank").Return(nil) },
		},
		{
			name:  "html",
			line:  "html 7 <title>x</title>",
			setup: func(m *mockRemote) { m.On("LoadHTML", uint64(7), "<title>x</title>").Return(nil) },
		},
		{
			name:  "send",
			line:  "send 7 hello there",
			setup: func(m *mockRemote) { m.On("Send", uint64(7), "hello there").Return(nil) },
		},
		{
			name:  "exit defaults to zero",
			line:  "exit",
			setup: func(m *mockRemote) { m.On("Exit", 0).Return(nil) },
		},
		{
			name:  "exit with code",
			line:  "exit 3",
			setup: func(m *mockRemote) { m.On("Exit", 3).Return(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRemote{}
			tt.setup(m)

			result, err := Execute(context.Background(), m, tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.result, result)
			m.AssertExpectations(t)
		})
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	lines := []string{
		"",
		"teleport",
		"close",
		"close abc",
		"close 0",
		"close 1 2",
		"title 1",
		"view 1 main",
		"view x main about:blank",
		"eval 1",
		"load 1",
		"exit soon",
		"ping now",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			m := &mockRemote{}
			_, err := Execute(context.Background(), m, line)
			require.ErrorIs(t, err, ErrUsage)
			m.AssertExpectations(t)
		})
	}
}

func TestExecute_RemoteError(t *testing.T) {
	m := &mockRemote{}
	boom := &remote.RequestError{Type: remote.TypeEvaluateScript, Kind: "script", Message: "boom"}
	m.On("EvaluateScript", uint64(1), "throw 1").Return("", boom)

	_, err := Execute(context.Background(), m, "eval 1 throw 1")
	var reqErr *remote.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "script", reqErr.Kind)
}

func TestUsage(t *testing.T) {
	usage := Usage()
	assert.Len(t, usage, len(commands))
	assert.Contains(t, usage, "eval <webview-id> <script>")
	assert.IsNonDecreasing(t, usage)
}
