package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	c "lautenbacher.net/capraclock/config"
	"lautenbacher.net/capraclock/logging"
	"lautenbacher.net/capraclock/screen"
)

// Preview shows in the terminal what the clock would display, cycling
// through the enabled screens, with the log output below it.
type Preview struct {
	tviewapp     *tview.Application
	header       *tview.TextView
	display      *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	configs      chan *c.Config
	logFlushOnce sync.Once
	readyChan    chan bool
	stopChan     chan struct{}
	wg           sync.WaitGroup

	// Readings supplies the values for the sensors screen. May be nil.
	Readings func() map[string]float64
}

func NewPreview(ossignalchan chan os.Signal) *Preview {
	return &Preview{
		ossignalChan: ossignalchan,
		configs:      make(chan *c.Config, 1),
		readyChan:    make(chan bool),
		stopChan:     make(chan struct{}),
	}
}

// Ready is closed once the TUI has drawn for the first time and logging has
// been redirected into the log pane.
func (s *Preview) Ready() <-chan bool {
	return s.readyChan
}

// Apply switches the preview to conf. It does not block; if an earlier
// config has not been picked up yet it is replaced.
func (s *Preview) Apply(conf *c.Config) {
	select {
	case <-s.configs:
	default:
	}
	s.configs <- conf
}

// headerText generates the text for the top info pane.
func headerText(conf *c.Config) string {
	onoff := func(b bool) string {
		if b {
			return "[#00ff00]on[-]"
		}
		return "[#808080]off[-]"
	}
	var nets []string
	for _, ssid := range conf.NetworkCandidates() {
		if ssid == "" {
			nets = append(nets, "[#808080]<unused>[-]")
		} else {
			nets = append(nets, tview.Escape(ssid))
		}
	}
	if len(nets) == 0 {
		nets = append(nets, "[#808080]<none>[-]")
	}

	line1 := fmt.Sprintf("WiFi: %s", strings.Join(nets, ", "))
	line2 := fmt.Sprintf("Date: %s | Sensors: %s | Logo: %s",
		onoff(conf.DateFeatureEnabled()), onoff(conf.SensorsFeatureEnabled()), onoff(conf.LogoFeatureEnabled()))
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

// Start builds the TUI and runs it together with the screen loop until ctx
// is cancelled or Stop is called.
func (s *Preview) Start(ctx context.Context, conf *c.Config) error {
	s.tviewapp = tview.NewApplication()

	s.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.header.SetText(headerText(conf))
	s.header.SetBorder(true).SetTitle(" CapraClock Preview ").SetTitleColor(tcell.ColorLightBlue)
	s.header.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.display = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.display.SetBorder(true)
	s.display.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.header, 5, 0, false).
		AddItem(s.display, 9, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.tviewapp.SetAfterDrawFunc(func(_ tcell.Screen) {
		s.logFlushOnce.Do(func() {
			if err := logging.SetOutput(tview.ANSIWriter(s.logView)); err != nil {
				slog.Error("Failed to redirect logging to TUI", "error", err)
			}
			close(s.readyChan)
		})
	})

	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				s.ossignalChan <- os.Interrupt
				return nil
			case 'r', 'R':
				s.ossignalChan <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	s.wg.Add(1)
	go s.screenLoop(ctx, conf)

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
	return nil
}

// Stop ends the TUI and gives the terminal back. Logging is buffered again
// so nothing gets lost until the caller closes the logging package.
func (s *Preview) Stop() {
	logging.BufferOutput()
	close(s.stopChan)
	s.wg.Wait()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *Preview) readings() map[string]float64 {
	if s.Readings == nil {
		return nil
	}
	return s.Readings()
}

func (s *Preview) screenLoop(ctx context.Context, conf *c.Config) {
	defer s.wg.Done()

	rotation := screen.NewRotation(conf)
	current, dur := rotation.Next()
	switchAt := time.Now().Add(dur)

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	s.show(current)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Ending screen loop go-routine...")
			return
		case <-s.stopChan:
			return
		case conf = <-s.configs:
			rotation = screen.NewRotation(conf)
			rotation.SkipLogo()
			current, dur = rotation.Next()
			switchAt = time.Now().Add(dur)
			hdr := headerText(conf)
			s.tviewapp.QueueUpdate(func() { s.header.SetText(hdr) })
			s.show(current)
		case now := <-tick.C:
			if !now.Before(switchAt) {
				current, dur = rotation.Next()
				switchAt = now.Add(dur)
				slog.Debug("Switching screen", "screen", current)
			}
			s.show(current)
		}
	}
}

func (s *Preview) show(current screen.Screen) {
	text := screen.Render(current, time.Now(), s.readings())
	title := fmt.Sprintf(" %s ", current)
	s.tviewapp.QueueUpdateDraw(func() {
		s.display.SetTitle(title)
		s.display.SetText("\n" + tview.Escape(text))
	})
}
