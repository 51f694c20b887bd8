package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/webloop/internal/cli"
	"github.com/bnema/webloop/internal/cli/styles"
	"github.com/bnema/webloop/internal/infrastructure/config"
	"github.com/bnema/webloop/pkg/webview"
)

var openOpts struct {
	html      string
	title     string
	label     string
	width     int
	height    int
	attach    bool
	initEvery []string
	initOnce  []string
	eval      string
	exit      bool
	devtools  bool
	echo      bool
}

var openCmd = &cobra.Command{
	Use:   "open [url]",
	Short: "Open a page in a webview and print its IPC traffic",
	Long: `Open a URL or an HTML file in a webview and run the event loop until the
view is closed or the process is interrupted.

Messages the page posts with window.ipc.postMessage are printed, along with
loop events such as page loads and close requests.

Examples:
  webloop open https://example.com
  webloop open --html ./index.html --init ./bridge.js
  webloop open --driver headless --html page.html --eval 'document.title' --exit
  webloop open --attach --title host --echo data:text/html,hello`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
	f := openCmd.Flags()
	f.StringVar(&openOpts.html, "html", "", "HTML file to load instead of a URL")
	f.StringVar(&openOpts.title, "title", "webloop", "window title")
	f.StringVar(&openOpts.label, "label", "main", "webview label")
	f.IntVar(&openOpts.width, "width", 800, "inner width")
	f.IntVar(&openOpts.height, "height", 600, "inner height")
	f.BoolVar(&openOpts.attach, "attach", false, "attach the webview to a host window instead of a standalone view")
	f.StringArrayVar(&openOpts.initEvery, "init", nil, "script file injected on every navigation (repeatable)")
	f.StringArrayVar(&openOpts.initOnce, "init-once", nil, "script file injected on the first navigation only (repeatable)")
	f.StringVar(&openOpts.eval, "eval", "", "script evaluated once the first page loaded")
	f.BoolVar(&openOpts.exit, "exit", false, "exit after --eval completed")
	f.BoolVar(&openOpts.devtools, "devtools", false, "open the developer tools")
	f.BoolVar(&openOpts.echo, "echo", false, `answer every page message with "echo:<body>"`)
}

func runOpen(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	if openOpts.exit && openOpts.eval == "" {
		return fmt.Errorf("--exit requires --eval")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder, err := openBuilder(args, app.Config.WebView)
	if err != nil {
		return err
	}

	loopOpts, err := cli.LoopOptions(app.Config.Loop, driverFlag, app.Logger)
	if err != nil {
		return err
	}
	loop, err := webview.NewEventLoop(loopOpts...)
	if err != nil {
		return err
	}

	out := styles.NewEventRenderer(app.Theme)
	var printMu sync.Mutex
	emit := func(line string) {
		printMu.Lock()
		defer printMu.Unlock()
		fmt.Println(line)
	}

	var evalOnce sync.Once
	loop.OnEvent(func(ev webview.Event) {
		detail := ev.URL
		if ev.Err != nil {
			detail = ev.Err.Error()
		}
		emit(out.RenderEvent(time.Now(), ev.Type.String(), detail, ev.Err != nil))

		if ev.Type == webview.EventPageLoaded && openOpts.eval != "" {
			if target := viewByID(loop, ev.WebViewID); target != nil {
				evalOnce.Do(func() {
					go evalAndReport(ctx, loop, target, out, emit)
				})
			}
		}
	})

	var view *webview.WebView
	builder.WithIPCHandler(func(msg webview.Message) error {
		emit(out.RenderMessage(msg.Received, msg.Label, msg.Body))
		if openOpts.echo {
			reply := "echo:" + msg.Body
			target := viewByID(loop, msg.WebViewID)
			if target == nil {
				return webview.ErrResourceGone
			}
			if err := target.Send(reply); err != nil {
				return err
			}
			emit(out.RenderSent(time.Now(), msg.Label, reply))
		}
		return nil
	})

	if openOpts.attach {
		window, werr := webview.NewWindowBuilder().
			WithTitle(openOpts.title).
			WithInnerSize(openOpts.width, openOpts.height).
			Build(ctx, loop)
		if werr != nil {
			loop.Exit()
			return werr
		}
		view, err = builder.BuildOnWindow(ctx, window, openOpts.label)
	} else {
		view, err = builder.Build(ctx, loop, openOpts.label)
	}
	if err != nil {
		loop.Exit()
		return err
	}

	if openOpts.devtools {
		go func() {
			if err := view.OpenDevtools(ctx); err != nil {
				emit(out.RenderFailure(time.Now(), "devtools", err))
			}
		}()
	}

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}
	if code := loop.ExitCode(); code != 0 {
		return &loopExitError{code: code}
	}
	return nil
}

func evalAndReport(ctx context.Context, loop *webview.EventLoop, view *webview.WebView, out *styles.EventRenderer, emit func(string)) {
	result, err := view.EvaluateScript(ctx, openOpts.eval)
	code := 0
	if err != nil {
		code = 1
		emit(out.RenderFailure(time.Now(), "eval", err))
	} else {
		emit(out.RenderResult(time.Now(), "eval", result))
	}
	if openOpts.exit {
		loop.ExitWithCode(code)
	}
}

// openBuilder prepares the webview builder from flags, config defaults and
// the optional URL argument.
func openBuilder(args []string, defaults config.WebViewConfig) (*webview.WebViewBuilder, error) {
	b := cli.ApplyWebViewDefaults(webview.NewWebViewBuilder(), defaults).
		WithTitle(openOpts.title).
		WithInnerSize(openOpts.width, openOpts.height)
	if openOpts.devtools {
		b.WithDevtools(true)
	}

	switch {
	case openOpts.html != "" && len(args) > 0:
		return nil, fmt.Errorf("pass either a URL or --html, not both")
	case openOpts.html != "":
		data, err := os.ReadFile(openOpts.html)
		if err != nil {
			return nil, fmt.Errorf("read html: %w", err)
		}
		b.WithHTML(string(data))
	case len(args) > 0:
		b.WithURL(args[0])
	default:
		b.WithURL("about:blank")
	}

	scripts, err := readInitScripts(openOpts.initOnce, openOpts.initEvery)
	if err != nil {
		return nil, err
	}
	return b.WithInitializationScripts(scripts...), nil
}

// readInitScripts loads once-only scripts first, then every-navigation ones.
func readInitScripts(once, every []string) ([]webview.InitScript, error) {
	scripts := make([]webview.InitScript, 0, len(once)+len(every))
	for _, group := range []struct {
		paths []string
		once  bool
	}{{once, true}, {every, false}} {
		for _, path := range group.paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read init script: %w", err)
			}
			scripts = append(scripts, webview.InitScript{Code: string(data), Once: group.once})
		}
	}
	return scripts, nil
}

func viewByID(loop *webview.EventLoop, id uint64) *webview.WebView {
	for _, v := range loop.WebViews() {
		if v.ID() == id {
			return v
		}
	}
	return nil
}
