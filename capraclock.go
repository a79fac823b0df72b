package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	c "lautenbacher.net/capraclock/config"
	"lautenbacher.net/capraclock/logging"
	"lautenbacher.net/capraclock/screen"
	"lautenbacher.net/capraclock/tui"
	"lautenbacher.net/capraclock/wifi"
)

type App struct {
	holder   *c.Holder
	preview  *tui.Preview
	server   *http.Server
	ossignal chan os.Signal
	headless chan *c.Config
}

func NewApp(holder *c.Holder, ossignal chan os.Signal) *App {
	return &App{
		holder:   holder,
		ossignal: ossignal,
		headless: make(chan *c.Config, 1),
	}
}

func main() {
	cfile := flag.String("config", "", "Path to the YAML config file (defaults only if empty)")
	tuip := flag.Bool("tui", false, "Show a terminal preview of the clock")
	webaddr := flag.String("web", "", "Serve the config API on this address, e.g. :8080")
	connectp := flag.Bool("connect", false, "Join the first reachable configured WiFi network via nmcli")
	iface := flag.String("iface", "", "WiFi interface to use with -connect")
	printp := flag.Bool("print", false, "Print the effective configuration (password masked) and exit")
	defaultsp := flag.Bool("write-defaults", false, "Print the default configuration file and exit")
	flag.Parse()

	if *defaultsp {
		os.Stdout.Write(c.DefaultsYAML())
		return
	}

	conf, err := c.Load(*cfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if *printp {
		if err := printConfig(os.Stdout, conf); err != nil {
			fmt.Fprintf(os.Stderr, "Can't print configuration: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := logging.Init(conf.Logging(), *tuip); err != nil {
		fmt.Fprintf(os.Stderr, "Can't initialise logging: %v\n", err)
		os.Exit(2)
	}
	defer logging.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(c.NewHolder(*cfile, conf), ossignal)
	if err := app.holder.Watch(ctx); err != nil {
		slog.Warn("Config file watching disabled", "error", err)
	}

	if *webaddr != "" {
		app.startWeb(*webaddr)
	}

	if *tuip {
		app.preview = tui.NewPreview(ossignal)
		if err := app.preview.Start(ctx, conf); err != nil {
			slog.Error("Failed to start TUI", "error", err)
			return
		}
		if !app.waitReady(app.preview.Ready()) {
			cancel()
			app.shutdown()
			return
		}
	} else {
		go app.headlessLoop(ctx, conf)
	}

	slog.Info("CapraClock started", "config", conf.Redacted())

	if *connectp {
		go func() {
			if _, err := wifi.Join(ctx, &wifi.NmcliConnector{Interface: *iface}, app.holder.Current()); err != nil {
				slog.Error("WiFi not connected", "error", err)
			}
		}()
	}

	app.run(ctx)
	cancel()
	app.shutdown()
}

// run dispatches signals and config changes until asked to exit.
func (a *App) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-a.ossignal:
			if a.handleSignal(sig) {
				return
			}
		case <-a.holder.Changed():
			a.applyConfig(a.holder.Current())
		}
	}
}

// waitReady blocks until ready fires. It returns false when a signal asks the
// application to exit first, e.g. because the TUI failed before drawing.
func (a *App) waitReady(ready <-chan bool) bool {
	for {
		select {
		case <-ready:
			return true
		case sig := <-a.ossignal:
			if a.handleSignal(sig) {
				return false
			}
		}
	}
}

// handleSignal returns true when the application should exit.
func (a *App) handleSignal(sig os.Signal) bool {
	if sig == syscall.SIGHUP {
		slog.Info("Reloading configuration...")
		if err := a.holder.Reload(); err != nil {
			slog.Error("Reload failed", "error", err)
		}
		return false
	}
	slog.Info("Received signal, shutting down", "signal", sig)
	return true
}

func (a *App) applyConfig(conf *c.Config) {
	logging.SetLevel(conf.Logging().Level)
	if a.preview != nil {
		a.preview.Apply(conf)
		return
	}
	select {
	case <-a.headless:
	default:
	}
	a.headless <- conf
}

func (a *App) startWeb(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/api/config", c.ConfigHandler(a.holder))
	a.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Serving config API", "addr", addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Config API failed", "error", err)
		}
	}()
}

func (a *App) shutdown() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down config API", "error", err)
		}
	}
	if a.preview != nil {
		a.preview.Stop()
	}
	slog.Info("Exiting")
}

// headlessLoop logs every screen switch instead of drawing it.
func (a *App) headlessLoop(ctx context.Context, conf *c.Config) {
	rotation := screen.NewRotation(conf)
	for {
		current, dur := rotation.Next()
		slog.Info("Screen", "screen", current, "text", screen.Render(current, time.Now(), nil))
		timer := time.NewTimer(dur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case conf = <-a.headless:
			timer.Stop()
			rotation = screen.NewRotation(conf)
			rotation.SkipLogo()
		case <-timer.C:
		}
	}
}

func printConfig(w io.Writer, conf *c.Config) error {
	data, err := yaml.Marshal(conf.Redacted())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Local Variables:
// compile-command: "go build"
// End:
