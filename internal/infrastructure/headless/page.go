package headless

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/grafana/sobek"
	"golang.org/x/net/html"
)

var errDocumentReplaced = errors.New("headless: document replaced before the promise settled")

type pendingEval struct {
	promise *sobek.Promise
	done    func(string, error)
}

// page is one loaded document and the runtime executing its scripts.
type page struct {
	view    *View
	vm      *sobek.Runtime
	root    *html.Node
	url     string
	title   string
	loading bool
	closed  bool

	nodes  map[*html.Node]*sobek.Object
	evals  []pendingEval
	timers map[int64]struct{}
}

func newPage(v *View, res *resource) (*page, error) {
	root, err := html.Parse(bytes.NewReader(res.body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	p := &page{
		view:    v,
		vm:      sobek.New(),
		root:    root,
		url:     res.url,
		loading: true,
		nodes:   make(map[*html.Node]*sobek.Object),
		timers:  make(map[int64]struct{}),
	}
	p.title = strings.TrimSpace(textContent(findElement(root, "title")))
	if err := p.installGlobals(); err != nil {
		return nil, fmt.Errorf("install globals: %w", err)
	}
	return p, nil
}

func (p *page) installGlobals() error {
	vm := p.vm
	global := vm.GlobalObject()

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		if err := console.Set(level, p.consoleFunc(level)); err != nil {
			return err
		}
	}

	location := vm.NewObject()
	_ = location.Set("href", p.url)

	navigator := vm.NewObject()
	_ = navigator.Set("userAgent", p.view.userAgent())

	globals := map[string]any{
		"window":                global,
		"self":                  global,
		"console":               console,
		"location":              location,
		"navigator":             navigator,
		"document":              p.bindDocument(),
		"setTimeout":            p.setTimeout,
		"clearTimeout":          p.clearTimeout,
		port.NativePostFunction: p.nativePost,
	}
	for name, value := range globals {
		if err := vm.Set(name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// run executes the injected scripts, then the inline scripts of the document.
func (p *page) run(injected []string) {
	for i, src := range injected {
		if _, err := p.exec(fmt.Sprintf("init-script-%d.js", i), src); err != nil {
			p.view.logger.Warn().Err(err).Int("script", i).Msg("initialization script failed")
		}
	}
	for i, src := range inlineScripts(p.root) {
		if _, err := p.exec(fmt.Sprintf("inline-%d.js", i), src); err != nil {
			p.view.logger.Warn().Err(err).Int("script", i).Msg("inline script failed")
		}
	}
	p.loading = false
}

// exec runs src, interrupting it when it exceeds the driver's script timeout.
func (p *page) exec(name, src string) (sobek.Value, error) {
	t := time.AfterFunc(p.view.queue.driver.scriptTimeout, func() {
		p.vm.Interrupt("script timeout")
	})
	v, err := p.vm.RunScript(name, src)
	t.Stop()
	p.vm.ClearInterrupt()
	return v, err
}

func (p *page) evaluate(code string, done func(string, error)) {
	v, err := p.exec("evaluate.js", code)
	if err != nil {
		done("", scriptError(err))
		return
	}
	if v != nil {
		if promise, ok := v.Export().(*sobek.Promise); ok {
			p.evals = append(p.evals, pendingEval{promise: promise, done: done})
			p.settle()
			return
		}
	}
	p.complete(v, done)
}

// settle completes evaluations whose promise is no longer pending.
func (p *page) settle() {
	if len(p.evals) == 0 {
		return
	}
	kept := p.evals[:0]
	for _, e := range p.evals {
		switch e.promise.State() {
		case sobek.PromiseStateFulfilled:
			p.complete(e.promise.Result(), e.done)
		case sobek.PromiseStateRejected:
			e.done("", fmt.Errorf("promise rejected: %s", describe(e.promise.Result())))
		default:
			kept = append(kept, e)
		}
	}
	p.evals = kept
}

// complete reports the JSON encoding of v; undefined becomes "null".
func (p *page) complete(v sobek.Value, done func(string, error)) {
	if v == nil || sobek.IsUndefined(v) {
		done("null", nil)
		return
	}
	stringify, ok := sobek.AssertFunction(p.vm.Get("JSON").ToObject(p.vm).Get("stringify"))
	if !ok {
		done("", errors.New("JSON.stringify unavailable"))
		return
	}
	out, err := stringify(sobek.Undefined(), v)
	if err != nil {
		done("", scriptError(err))
		return
	}
	if out == nil || sobek.IsUndefined(out) {
		done("null", nil)
		return
	}
	done(out.String(), nil)
}

// post makes the document send body through window.ipc.postMessage.
func (p *page) post(body string) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return
	}
	if _, err := p.exec("post.js", "window.ipc.postMessage("+string(encoded)+")"); err != nil {
		p.view.logger.Warn().Err(err).Msg("simulated post failed")
	}
}

func (p *page) nativePost(call sobek.FunctionCall) sobek.Value {
	body := call.Argument(0).String()
	view, url := p.view, p.url
	view.queue.enqueue(func() {
		if !view.destroyed {
			view.queue.sink.ScriptMessage(view.id, body, url)
		}
	})
	return sobek.Undefined()
}

func (p *page) setTimeout(call sobek.FunctionCall) sobek.Value {
	fn, ok := sobek.AssertFunction(call.Argument(0))
	if !ok {
		panic(p.vm.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	var args []sobek.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	var id int64
	id = p.view.queue.schedule(p, delay, func() {
		delete(p.timers, id)
		if _, err := fn(sobek.Undefined(), args...); err != nil {
			p.view.logger.Warn().Err(err).Msg("timer callback failed")
		}
	})
	p.timers[id] = struct{}{}
	return p.vm.ToValue(id)
}

func (p *page) clearTimeout(call sobek.FunctionCall) sobek.Value {
	id := call.Argument(0).ToInteger()
	if _, ok := p.timers[id]; ok {
		delete(p.timers, id)
		p.view.queue.cancelTimer(id)
	}
	return sobek.Undefined()
}

func (p *page) consoleFunc(level string) func(sobek.FunctionCall) sobek.Value {
	return func(call sobek.FunctionCall) sobek.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, describe(arg))
		}
		msg := strings.Join(parts, " ")
		logger := p.view.logger
		switch level {
		case "error":
			logger.Error().Str("source", "console").Msg(msg)
		case "warn":
			logger.Warn().Str("source", "console").Msg(msg)
		case "debug":
			logger.Debug().Str("source", "console").Msg(msg)
		default:
			logger.Info().Str("source", "console").Msg(msg)
		}
		return sobek.Undefined()
	}
}

// active reports whether the page is still the current document of a live view.
func (p *page) active() bool {
	return !p.closed && !p.view.destroyed && p.view.page == p
}

func (p *page) close() {
	if p.closed {
		return
	}
	p.closed = true
	for id := range p.timers {
		p.view.queue.cancelTimer(id)
	}
	p.timers = nil
	evals := p.evals
	p.evals = nil
	for _, e := range evals {
		e.done("", errDocumentReplaced)
	}
}

func scriptError(err error) error {
	var ex *sobek.Exception
	if errors.As(err, &ex) {
		return errors.New(describe(ex.Value()))
	}
	var interrupted *sobek.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("interrupted: %v", interrupted.Value())
	}
	return err
}

func describe(v sobek.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}
