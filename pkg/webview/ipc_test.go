package webview

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoPage = `<html><head><title>echo</title><script>
window.` + ReceiveHook + ` = function (m) { window.ipc.postMessage("echo:" + m); };
</script></head><body></body></html>`

func TestIPC_MessagesArriveInPostOrder(t *testing.T) {
	h := runLoop(t)
	got := &recorder[Message]{}

	var script strings.Builder
	script.WriteString("<script>")
	for i := range 50 {
		fmt.Fprintf(&script, "window.ipc.postMessage(%q);", fmt.Sprint(i))
	}
	script.WriteString("</script>")

	v, err := NewWebViewBuilder().
		WithHTML(script.String()).
		WithIPCHandler(func(m Message) error { got.add(m); return nil }).
		Build(testContext(t), h.loop, "ordered")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return got.len() == 50 }, waitFor, tick)
	for i, m := range got.all() {
		assert.Equal(t, fmt.Sprint(i), m.Body)
		assert.Equal(t, v.ID(), m.WebViewID)
		assert.Equal(t, "ordered", m.Label)
		assert.Equal(t, "about:blank", m.URL)
		assert.False(t, m.Received.IsZero())
	}
	assert.Equal(t, uint64(50), v.Stats().Received)
}

func TestIPC_ListenersRunInRegistrationOrder(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	calls := &recorder[string]{}

	for _, name := range []string{"first", "second", "third"} {
		v.On(func(m Message) error {
			calls.add(name + ":" + m.Body)
			return nil
		})
	}

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "a"))
	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "b"))

	require.Eventually(t, func() bool { return calls.len() == 6 }, waitFor, tick)
	assert.Equal(t, []string{
		"first:a", "second:a", "third:a",
		"first:b", "second:b", "third:b",
	}, calls.all())
}

func TestIPC_FailingListenersDoNotStopDelivery(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	calls := &recorder[string]{}
	failures := &recorder[*ListenerError]{}
	v.OnListenerError(failures.add)

	boom := errors.New("boom")
	v.On(func(m Message) error { calls.add("ok-before"); return nil })
	v.On(func(m Message) error { return boom })
	v.On(func(m Message) error { panic("listener exploded") })
	v.On(func(m Message) error { calls.add("ok-after"); return nil })

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "x"))

	require.Eventually(t, func() bool { return failures.len() == 2 }, waitFor, tick)
	assert.Equal(t, []string{"ok-before", "ok-after"}, calls.all())

	errs := failures.all()
	assert.Equal(t, 1, errs[0].Index)
	assert.ErrorIs(t, errs[0], boom)
	assert.Nil(t, errs[0].Panic)
	assert.Equal(t, 2, errs[1].Index)
	assert.Equal(t, "listener exploded", errs[1].Panic)
	assert.Contains(t, errs[1].Error(), "panicked")
	assert.Equal(t, v.ID(), errs[1].WebViewID)

	assert.Equal(t, uint64(2), v.Stats().ListenerErrors)
	assert.Equal(t, LoopRunning, h.loop.State())
}

func TestIPC_PanickingErrorHookIsContained(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	after := &recorder[string]{}

	v.OnListenerError(func(*ListenerError) { panic("hook exploded") })
	v.On(func(Message) error { return errors.New("fail") })
	v.On(func(m Message) error { after.add(m.Body); return nil })

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "1"))
	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "2"))

	require.Eventually(t, func() bool { return after.len() == 2 }, waitFor, tick)
	assert.Equal(t, []string{"1", "2"}, after.all())
}

func TestIPC_ListenerAddedDuringDeliverySeesLaterMessages(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	first := &recorder[string]{}
	late := &recorder[string]{}

	v.On(func(m Message) error {
		if first.len() == 0 {
			v.On(func(m Message) error { late.add(m.Body); return nil })
		}
		first.add(m.Body)
		return nil
	})

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "1"))
	require.Eventually(t, func() bool { return first.len() == 1 }, waitFor, tick)

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "2"))
	require.Eventually(t, func() bool { return first.len() == 2 && late.len() == 1 }, waitFor, tick)

	assert.Equal(t, []string{"2"}, late.all(), "the new listener missed the message it was added during")
}

func TestIPC_Unsubscribe(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	removed := &recorder[string]{}
	kept := &recorder[string]{}

	off := v.On(func(m Message) error { removed.add(m.Body); return nil })
	v.On(func(m Message) error { kept.add(m.Body); return nil })

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "1"))
	require.Eventually(t, func() bool { return kept.len() == 1 }, waitFor, tick)

	off()
	off()

	require.NoError(t, h.driver.SimulateScriptMessage(v.ID(), "2"))
	require.Eventually(t, func() bool { return kept.len() == 2 }, waitFor, tick)

	assert.Equal(t, []string{"1"}, removed.all())
	assert.Equal(t, []string{"1", "2"}, kept.all())

	// A nil listener is ignored.
	v.On(nil)()
}

func TestIPC_MessagesStayWithTheirWebView(t *testing.T) {
	h := runLoop(t)
	a := buildHTMLView(t, h.loop, "<p>a</p>")
	b := buildHTMLView(t, h.loop, "<p>b</p>")
	gotA := &recorder[Message]{}
	gotB := &recorder[Message]{}
	a.On(func(m Message) error { gotA.add(m); return nil })
	b.On(func(m Message) error { gotB.add(m); return nil })

	require.NoError(t, h.driver.SimulateScriptMessage(a.ID(), "to-a"))
	require.NoError(t, h.driver.SimulateScriptMessage(b.ID(), "to-b"))

	require.Eventually(t, func() bool { return gotA.len() == 1 && gotB.len() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"to-a"}, bodies(gotA.all()))
	assert.Equal(t, []string{"to-b"}, bodies(gotB.all()))
}

func TestIPC_SendReachesPageHook(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, echoPage)
	got := &recorder[Message]{}
	v.On(func(m Message) error { got.add(m); return nil })

	payloads := []string{"ping", `quotes " and \ backslash`, "line\nbreak", "ünïcödé ✓", ""}
	for _, p := range payloads {
		require.NoError(t, v.Send(p))
	}

	require.Eventually(t, func() bool { return got.len() == len(payloads) }, waitFor, tick)
	want := make([]string, len(payloads))
	for i, p := range payloads {
		want[i] = "echo:" + p
	}
	assert.Equal(t, want, bodies(got.all()))

	require.Eventually(t, func() bool { return v.Stats().Delivered == uint64(len(payloads)) }, waitFor, tick)
	stats := v.Stats()
	assert.Equal(t, uint64(len(payloads)), stats.Sent)
	assert.Zero(t, stats.Dropped)
}

func TestIPC_SendWithoutHookIsDropped(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p>no hook</p>")

	require.NoError(t, v.Send("lost"))

	require.Eventually(t, func() bool { return v.Stats().Dropped == 1 }, waitFor, tick)
	assert.Equal(t, uint64(1), v.Stats().Sent)
	assert.Zero(t, v.Stats().Delivered)
}

func TestIPC_SendAfterDestroy(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, echoPage)
	require.NoError(t, v.Destroy(testContext(t)))

	err := v.Send("late")
	require.ErrorIs(t, err, ErrResourceGone)
	assert.Zero(t, v.Stats().Sent)
}

func TestIPC_SendAfterLoopExit(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, echoPage)

	h.loop.Exit()
	require.NoError(t, h.wait(t))

	assert.ErrorIs(t, v.Send("late"), ErrResourceGone)
}

func TestIPC_BridgeSurvivesNavigation(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	got := &recorder[string]{}
	v.On(func(m Message) error { got.add(m.Body); return nil })

	require.NoError(t, v.LoadHTML(testContext(t), "<script>window.ipc.postMessage('after navigation')</script>"))

	require.Eventually(t, func() bool { return got.len() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"after navigation"}, got.all())
}

func TestIPC_PageCannotReplaceBridge(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p/>")
	got := &recorder[string]{}
	v.On(func(m Message) error { got.add(m.Body); return nil })

	_, err := v.EvaluateScript(testContext(t), "try { window.ipc = null } catch (e) {}; window.ipc.postMessage('still here')")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return got.len() == 1 }, waitFor, tick)
	assert.Equal(t, []string{"still here"}, got.all())
}
