package webview

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsInOrderAndSurvivesPanics(t *testing.T) {
	d := newDispatcher(zerolog.Nop())
	got := &recorder[int]{}

	for i := range 10 {
		if i == 4 {
			require.True(t, d.submit(func() { panic("boom") }))
		}
		require.True(t, d.submit(func() { got.add(i) }))
	}
	d.close()
	d.close()
	d.wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got.all())
	assert.False(t, d.submit(func() {}), "closed dispatcher rejects work")
}

func TestDispatcher_WorkQueuedFromCallback(t *testing.T) {
	d := newDispatcher(zerolog.Nop())
	got := &recorder[string]{}
	done := make(chan struct{})

	d.submit(func() {
		got.add("outer")
		d.submit(func() {
			got.add("inner")
			close(done)
		})
	})
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("nested callback never ran")
	}
	d.close()
	d.wait()
	assert.Equal(t, []string{"outer", "inner"}, got.all())
}

func TestPendingSet(t *testing.T) {
	p := newPendingSet[string]()

	id1, ch1, err := p.add()
	require.NoError(t, err)
	id2, ch2, err := p.add()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, p.len())

	p.resolve(id1, "one", nil)
	p.resolve(id1, "again", nil)
	res := <-ch1
	assert.Equal(t, "one", res.value)
	assert.NoError(t, res.err)
	assert.Len(t, ch1, 0, "a request resolves exactly once")

	p.drop(id2)
	p.resolve(id2, "ignored", nil)
	assert.Len(t, ch2, 0)
	assert.Zero(t, p.len())
}

func TestPendingSet_Close(t *testing.T) {
	p := newPendingSet[string]()
	_, ch, err := p.add()
	require.NoError(t, err)

	gone := goneErr("webview", 7)
	p.close(gone)
	p.close(errors.New("second close is ignored"))

	res := <-ch
	assert.Same(t, gone, res.err)

	_, _, err = p.add()
	assert.Same(t, gone, err)
}

func TestErrors(t *testing.T) {
	verr := validationErr("window", "title", "must not be empty")
	assert.ErrorIs(t, verr, ErrValidation)
	assert.NotErrorIs(t, verr, ErrResourceGone)
	assert.EqualError(t, verr, "webview: invalid window config: title must not be empty")

	gone := goneErr("webview", 3)
	assert.ErrorIs(t, gone, ErrResourceGone)
	assert.NotErrorIs(t, gone, ErrAborted)
	assert.EqualError(t, gone, "webview: webview 3 is gone")

	aborted := abortedErr("window", 4)
	assert.ErrorIs(t, aborted, ErrResourceGone)
	assert.ErrorIs(t, aborted, ErrAborted)

	wrapped := fmt.Errorf("outer: %w", aborted)
	var rg *ResourceGoneError
	require.ErrorAs(t, wrapped, &rg)
	assert.True(t, rg.Aborted)

	cause := errors.New("connection refused")
	nav := &NavigationError{URL: "https://example.com", Err: cause}
	assert.ErrorIs(t, nav, cause)
	assert.Contains(t, nav.Error(), `"https://example.com"`)

	lerr := &ListenerError{WebViewID: 1, Index: 2, Err: cause}
	assert.ErrorIs(t, lerr, cause)
	assert.EqualError(t, lerr, "webview: ipc listener 2 of webview 1 failed: connection refused")

	serr := &ScriptEvaluationError{Message: "ReferenceError: x is not defined"}
	assert.EqualError(t, serr, "webview: script evaluation failed: ReferenceError: x is not defined")
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "window-close-requested", EventWindowCloseRequested.String())
	assert.Equal(t, "application-close-requested", EventApplicationCloseRequested.String())
	assert.Equal(t, "page-loaded", EventPageLoaded.String())
	assert.Equal(t, "unknown", EventType(99).String())
	assert.Equal(t, "attached", ModeAttached.String())
}
