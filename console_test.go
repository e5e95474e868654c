package winderconsole

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/etymology/winderconsole/internal/poll"
	"github.com/etymology/winderconsole/internal/store"
	"github.com/etymology/winderconsole/internal/view"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// machine is a remote stub answering queries from a table keyed by
// expression and recording commands.
type machine struct {
	mu       sync.Mutex
	values   map[string]string
	commands []string
	down     atomic.Bool
}

func (m *machine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.down.Load() {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := map[string]string{}
	var order []string
	switch {
	case r.URL.Path == "/login" && r.PostForm.Has(poll.PasswordHashField):
		ok := r.PostForm.Get(poll.PasswordHashField) == poll.HashPassword("s1", "pw")
		fields[poll.LoginResultField] = map[bool]string{true: "true", false: "false"}[ok]
		order = []string{poll.LoginResultField}
	case r.URL.Path == "/login":
		fields[poll.IsAuthenticatedField] = "false"
		fields[poll.SaltField] = `"s1"`
		order = []string{poll.IsAuthenticatedField, poll.SaltField}
	case r.PostForm.Has(poll.CommandField):
		expr := r.PostForm.Get(poll.CommandField)
		m.commands = append(m.commands, expr)
		fields[poll.CommandField] = "true"
		if v, ok := m.values[expr]; ok {
			fields[poll.CommandField] = v
		}
		order = []string{poll.CommandField}
	default:
		for id := range r.PostForm {
			if v, ok := m.values[r.PostForm.Get(id)]; ok {
				fields[id] = v
				order = append(order, id)
			}
		}
	}
	_ = poll.EncodeResultData(w, fields, order)
}

func (m *machine) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

const jogMarkup = `<span id="axisX"></span><button id="spindle">Spindle</button>` +
	`<button id="home">Home</button><span class="error-indicator" id="link"></span>`

const jogDescriptor = `
displays:
  - {query: Axis.x, target: axisX, decimals: 2}
toggles:
  - {control: spindle, get: Spindle.get(), set: "Spindle.set({})"}
`

var site = fstest.MapFS{
	"Remote.yaml":      {Data: []byte("")},
	"MotorStatus.html": {Data: []byte(`<span id="motor"></span>`)},
	"MotorStatus.yaml": {Data: []byte("displays:\n  - {query: Motor.state, target: motor}\n")},
	"Jog.html":         {Data: []byte(jogMarkup)},
	"Jog.css":          {Data: []byte(`#axisX{}`)},
	"Jog.yaml":         {Data: []byte(jogDescriptor)},
	"Setup.html":       {Data: []byte(`<p>setup</p><button id="calib">Calibrate</button>`)},
	"Setup.yaml":       {Data: []byte("")},
}

type consoleHarness struct {
	t       *testing.T
	machine *machine
	rt      *runtime
}

func newConsoleHarness(t *testing.T) *consoleHarness {
	t.Helper()
	m := &machine{values: map[string]string{
		"Axis.x":         "12.5",
		"Spindle.get()":  "0",
		"Spindle.set(1)": "true",
		"Motor.state":    `"idle"`,
		"Version":        `"3.1"`,
	}}
	remote := httptest.NewServer(m)
	t.Cleanup(remote.Close)

	c, err := New(
		WithRemoteURL(remote.URL+"/"),
		WithAssetFS(site),
		WithStartPage("Jog", "main"),
		WithPollInterval(10*time.Millisecond),
		WithBaseStylesheets("Desktop.css"),
		WithCommonModules("Remote"),
		WithCommonSubPages(SubPage{Name: "MotorStatus", Slot: "motorStatus"}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rt, err := c.assemble(ctx)
	if err != nil {
		t.Fatalf("assemble() error = %v", err)
	}
	t.Cleanup(rt.transport.Close)
	rt.run(ctx)
	rt.loadStartPage()
	return &consoleHarness{t: t, machine: m, rt: rt}
}

// value returns the latest stored change for kind and target.
func (h *consoleHarness) value(kind store.Kind, target string) any {
	for _, c := range h.rt.store.GetAll() {
		if c.Kind == kind && c.Target == target {
			return c.Value
		}
	}
	return nil
}

func (h *consoleHarness) eventually(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("%s: condition not met within 2s", what)
}

func ctxTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConsole_StartPageBindsWidgets(t *testing.T) {
	h := newConsoleHarness(t)

	h.eventually("axisX shown", func() bool { return h.value(store.KindOutput, "axisX") == "12.50" })
	h.eventually("motor shown", func() bool { return h.value(store.KindOutput, "motor") == "idle" })
	h.eventually("page published", func() bool { return h.value(store.KindPage, "") == "Jog" })

	st, err := h.rt.Status(ctxTimeout(t))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Page != "Jog" || st.Connectivity != "nominal" {
		t.Errorf("Status() = %+v", st)
	}
	if st.Queries != 3 {
		t.Errorf("Queries = %d, want 3", st.Queries)
	}
	if len(st.Stylesheets) == 0 || st.Stylesheets[0] != "Desktop.css" || !slices.Contains(st.Stylesheets, "Jog.css") {
		t.Errorf("Stylesheets = %v", st.Stylesheets)
	}
}

func TestConsole_ActionSendsToggleCommand(t *testing.T) {
	h := newConsoleHarness(t)
	h.eventually("page ready", func() bool { return h.value(store.KindOutput, "axisX") == "12.50" })

	if err := h.rt.Action(ctxTimeout(t), "spindle", ""); err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	h.eventually("set command sent", func() bool {
		for _, c := range h.machine.sent() {
			if c == "Spindle.set(1)" {
				return true
			}
		}
		return false
	})

	err := h.rt.Action(ctxTimeout(t), "nothing", "")
	if !errors.Is(err, view.ErrUnknownControl) {
		t.Errorf("Action(unknown) error = %v, want ErrUnknownControl", err)
	}
}

func TestConsole_NavigateSuspendsPreviousPage(t *testing.T) {
	h := newConsoleHarness(t)
	h.eventually("page ready", func() bool { return h.value(store.KindOutput, "axisX") == "12.50" })

	if err := h.rt.Navigate(ctxTimeout(t), "Setup", ""); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	h.eventually("setup active", func() bool { return h.value(store.KindPage, "") == "Setup" })

	st, err := h.rt.Status(ctxTimeout(t))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	// only the motor status display of the new page remains active
	if st.Queries != 1 {
		t.Errorf("Queries = %d, want 1", st.Queries)
	}
	for _, href := range st.Stylesheets {
		if href == "Jog.css" {
			t.Error("Jog.css still linked after switching pages")
		}
	}

	if err := h.rt.Navigate(ctxTimeout(t), "Jog", ""); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	h.eventually("jog restored", func() bool { return h.value(store.KindPage, "") == "Jog" })
	h.eventually("jog queries resumed", func() bool {
		st, err := h.rt.Status(ctxTimeout(t))
		return err == nil && st.Queries == 3
	})
}

func TestConsole_DegradedAndRecovered(t *testing.T) {
	h := newConsoleHarness(t)
	h.eventually("page ready", func() bool { return h.value(store.KindOutput, "axisX") == "12.50" })

	h.machine.down.Store(true)
	h.eventually("degraded", func() bool { return h.value(store.KindConnectivity, "") == "degraded" })
	if enabled, _ := h.value(store.KindControl, "spindle").(bool); enabled {
		t.Error("spindle should be disabled while degraded")
	}

	h.machine.down.Store(false)
	h.eventually("nominal", func() bool { return h.value(store.KindConnectivity, "") == "nominal" })
	h.eventually("spindle enabled", func() bool {
		enabled, _ := h.value(store.KindControl, "spindle").(bool)
		return enabled
	})
}

// onLoop runs fn on the console loop and waits for it.
func (h *consoleHarness) onLoop(fn func()) {
	h.t.Helper()
	if err := h.rt.loop.Call(ctxTimeout(h.t), fn); err != nil {
		h.t.Fatalf("loop.Call() error = %v", err)
	}
}

func TestConsole_NavigateWhileDegraded(t *testing.T) {
	h := newConsoleHarness(t)
	h.eventually("page ready", func() bool { return h.value(store.KindOutput, "axisX") == "12.50" })

	h.machine.down.Store(true)
	h.eventually("degraded", func() bool { return h.value(store.KindConnectivity, "") == "degraded" })

	if err := h.rt.Navigate(ctxTimeout(t), "Setup", ""); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	h.eventually("setup active", func() bool { return h.value(store.KindPage, "") == "Setup" })
	h.onLoop(func() {
		if h.rt.doc.ControlEnabled("calib") {
			t.Error("control of a page loaded while degraded should be disabled")
		}
	})
	if err := h.rt.Action(ctxTimeout(t), "calib", ""); !errors.Is(err, view.ErrControlDisabled) {
		t.Errorf("Action(calib) while degraded error = %v, want ErrControlDisabled", err)
	}

	h.machine.down.Store(false)
	h.eventually("nominal", func() bool { return h.value(store.KindConnectivity, "") == "nominal" })
	h.onLoop(func() {
		if !h.rt.doc.ControlEnabled("calib") {
			t.Error("calib should be enabled after recovery")
		}
	})

	if err := h.rt.Navigate(ctxTimeout(t), "Jog", ""); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	h.eventually("jog restored", func() bool { return h.value(store.KindPage, "") == "Jog" })
	h.onLoop(func() {
		if !h.rt.doc.ControlEnabled("home") {
			t.Error("home should be enabled on a page restored after recovery")
		}
		if markup := h.rt.doc.Slot("main"); strings.Contains(markup, "error-active") {
			t.Errorf("restored page still flags errors:\n%s", markup)
		}
	})
	h.eventually("spindle enabled", func() bool {
		enabled := false
		h.onLoop(func() { enabled = h.rt.doc.ControlEnabled("spindle") })
		return enabled
	})
}

func TestConsole_CommandAndLogin(t *testing.T) {
	h := newConsoleHarness(t)

	v, err := h.rt.Command(ctxTimeout(t), "Version")
	if err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if v != "3.1" {
		t.Errorf("Command() = %v, want 3.1", v)
	}

	ok, err := h.rt.Login(ctxTimeout(t), "pw")
	if err != nil || !ok {
		t.Errorf("Login(pw) = %v, %v", ok, err)
	}
	ok, err = h.rt.Login(ctxTimeout(t), "wrong")
	if err != nil || ok {
		t.Errorf("Login(wrong) = %v, %v", ok, err)
	}
}

func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	remote := httptest.NewServer(&machine{values: map[string]string{}})
	defer remote.Close()

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	c, err := New(
		WithRemoteURL(remote.URL+"/"),
		WithAssetFS(site),
		WithStartPage("Setup", ""),
		WithPort(port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	c, err := New(required()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Start(ctx); err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

func TestStart_BadAssetsDirectory(t *testing.T) {
	c, err := New(
		WithRemoteURL("http://localhost:6626/"),
		WithAssets(t.TempDir()+"/missing"),
		WithStartPage("APA", ""),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = c.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "assets") {
		t.Errorf("Start() error = %v, want assets error", err)
	}
}
