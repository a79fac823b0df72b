package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "lautenbacher.net/capraclock/config"
)

func newTestApp(t *testing.T, yml string) (*App, string) {
	t.Helper()
	cfile := filepath.Join(t.TempDir(), c.CONFILE)
	require.NoError(t, os.WriteFile(cfile, []byte(yml), 0o644))
	conf, err := c.ReadConfig(cfile)
	require.NoError(t, err)
	return NewApp(c.NewHolder(cfile, conf), make(chan os.Signal, 1)), cfile
}

func TestPrintConfig(t *testing.T) {
	conf := c.Default().WithPassword("secret12")

	var out bytes.Buffer
	require.NoError(t, printConfig(&out, conf))

	assert.Contains(t, out.String(), `SSIDs: ["", ""]`)
	assert.Contains(t, out.String(), "***")
	assert.NotContains(t, out.String(), "secret12")
}

func TestHandleSignal(t *testing.T) {
	app, cfile := newTestApp(t, "Features:\n  EnableDate: false\n")

	require.NoError(t, os.WriteFile(cfile, []byte("Features:\n  EnableDate: true\n"), 0o644))
	assert.False(t, app.handleSignal(syscall.SIGHUP), "SIGHUP reloads and keeps running")
	assert.True(t, app.holder.Current().DateFeatureEnabled())

	assert.True(t, app.handleSignal(os.Interrupt))
	assert.True(t, app.handleSignal(syscall.SIGTERM))
}

func TestWaitReady(t *testing.T) {
	app, _ := newTestApp(t, "")
	ready := make(chan bool)
	close(ready)
	assert.True(t, app.waitReady(ready))
}

func TestWaitReady_ExitsWhenTUINeverDraws(t *testing.T) {
	app, _ := newTestApp(t, "")
	never := make(chan bool)

	done := make(chan bool)
	go func() {
		done <- app.waitReady(never)
	}()

	app.ossignal <- syscall.SIGHUP
	app.ossignal <- os.Interrupt
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("waitReady kept blocking after interrupt")
	}
}

func TestRun_AppliesReloadedConfigAndExits(t *testing.T) {
	app, cfile := newTestApp(t, "Features:\n  EnableSensors: false\n")

	done := make(chan struct{})
	go func() {
		app.run(context.Background())
		close(done)
	}()

	require.NoError(t, os.WriteFile(cfile, []byte("Features:\n  EnableSensors: true\n"), 0o644))
	app.ossignal <- syscall.SIGHUP

	select {
	case conf := <-app.headless:
		assert.True(t, conf.SensorsFeatureEnabled(), "the headless loop must get the reloaded config")
	case <-time.After(5 * time.Second):
		t.Fatal("reloaded config was not handed on")
	}

	app.ossignal <- os.Interrupt
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after interrupt")
	}
}

func TestHeadlessLoop_StopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t, "Features:\n  ShowLogo: true\n")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		app.headlessLoop(ctx, app.holder.Current())
		close(done)
	}()

	app.headless <- c.Default()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("headless loop did not stop")
	}
}
