package winderconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/etymology/winderconsole/dashboard"
	"github.com/etymology/winderconsole/internal/loop"
	"github.com/etymology/winderconsole/internal/module"
	"github.com/etymology/winderconsole/internal/page"
	"github.com/etymology/winderconsole/internal/poll"
	"github.com/etymology/winderconsole/internal/server"
	"github.com/etymology/winderconsole/internal/store"
	"github.com/etymology/winderconsole/internal/view"
	"github.com/etymology/winderconsole/internal/widget"
)

const (
	defaultPort           = 8080
	defaultPollInterval   = 200 * time.Millisecond
	defaultRequestTimeout = 5 * time.Second
	defaultStartSlot      = "main"
)

// Console is the operator console: it loads pages from the asset source,
// keeps their widgets bound to the remote machine through the batched poll
// and serves the live document over HTTP.
//
// The typical lifecycle is:
//
//	c, err := winderconsole.New(
//	    winderconsole.WithRemoteURL("http://localhost:6626/"),
//	    winderconsole.WithAssets("./site"),
//	    winderconsole.WithStartPage("APA", "main"),
//	)
//	if err != nil {
//	    slog.Error("failed to create console", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	c.Start(ctx) // blocks until context cancelled
type Console struct {
	cfg    consoleConfig
	logger *slog.Logger
}

// New creates a [Console] with the given options.
//
// A remote URL, an asset location and a start page are required.
// Other options have defaults:
//   - Port: 8080
//   - Poll interval: 200ms
//   - Request timeout: 5s
//   - Start slot: "main"
func New(opts ...Option) (*Console, error) {
	cfg := consoleConfig{
		port:           defaultPort,
		pollInterval:   defaultPollInterval,
		requestTimeout: defaultRequestTimeout,
		startSlot:      defaultStartSlot,
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.remoteURL == "" {
		return nil, errors.New("a remote url is required")
	}
	if cfg.assets == "" && cfg.assetFS == nil {
		return nil, errors.New("an asset location is required")
	}
	if cfg.startPage == "" {
		return nil, errors.New("a start page is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Console{cfg: cfg, logger: logger}, nil
}

// Port returns the HTTP port of the console server.
func (c *Console) Port() int {
	return c.cfg.port
}

// PollInterval returns the period of the batched poll.
func (c *Console) PollInterval() time.Duration {
	return c.cfg.pollInterval
}

// StartPage returns the page loaded at startup and its slot.
func (c *Console) StartPage() (name, slot string) {
	return c.cfg.startPage, c.cfg.startSlot
}

// Start loads the start page, begins polling and serves the console.
//
// Start blocks until ctx is cancelled. Returns nil on graceful shutdown and
// an error if the console cannot be assembled or the HTTP server fails to
// start.
func (c *Console) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := c.assemble(ctx)
	if err != nil {
		return err
	}
	defer rt.transport.Close()

	srv := server.NewServer(rt.store, rt, rt.source, c.cfg.port, dashboard.Assets, c.cfg.title, c.logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	c.logger.Info("winder console starting",
		"remote", c.cfg.remoteURL,
		"start_page", c.cfg.startPage,
		"poll_interval", c.cfg.pollInterval.String(),
	)
	c.logger.Info("console available", "url", fmt.Sprintf("http://localhost:%d", c.cfg.port))

	rt.run(ctx)
	rt.loadStartPage()

	<-ctx.Done()
	c.logger.Info("winder console stopped")
	return nil
}

// runtime is one assembled console: everything below owned by the loop
// except the store and the transport.
type runtime struct {
	ctx       context.Context
	loop      *loop.Loop
	store     *store.MemoryStore
	doc       *view.Document
	transport *poll.HTTPTransport
	engine    *poll.Engine
	pages     *page.Manager
	source    module.Source
	startPage string
	startSlot string
	logger    *slog.Logger
}

func (c *Console) assemble(ctx context.Context) (*runtime, error) {
	src, err := c.source()
	if err != nil {
		return nil, err
	}

	topts := []poll.TransportOption{poll.WithRequestTimeout(c.cfg.requestTimeout)}
	if c.cfg.http2 {
		topts = append(topts, poll.WithHTTP2())
	}
	transport, err := poll.NewHTTPTransport(c.cfg.remoteURL, topts...)
	if err != nil {
		return nil, err
	}

	l := loop.New(c.logger)
	st := store.NewMemoryStore()
	doc := view.NewDocument(st, c.cfg.baseStylesheets...)

	engine, err := poll.NewEngine(l, transport,
		poll.WithInterval(c.cfg.pollInterval),
		poll.WithControls(doc),
		poll.WithLogger(c.logger),
	)
	if err != nil {
		transport.Close()
		return nil, err
	}

	subs := make([]page.SubPage, len(c.cfg.commonSubPages))
	for i, s := range c.cfg.commonSubPages {
		subs[i] = page.SubPage{Name: s.Name, Slot: s.Slot}
	}
	pages, err := page.New(l, doc, src, widget.Registry(engine, doc),
		page.WithLogger(c.logger),
		page.WithCommonModules(c.cfg.commonModules...),
		page.WithCommonSubPages(subs...),
	)
	if err != nil {
		transport.Close()
		return nil, err
	}

	rt := &runtime{
		ctx:       ctx,
		loop:      l,
		store:     st,
		doc:       doc,
		transport: transport,
		engine:    engine,
		pages:     pages,
		source:    src,
		startPage: c.cfg.startPage,
		startSlot: c.cfg.startSlot,
		logger:    c.logger,
	}

	doc.SetConnectivity(engine.State().String())
	engine.OnErrorEnter(func() {
		rt.logger.Warn("remote unreachable, controls disabled")
		doc.SetConnectivity(engine.State().String())
	})
	engine.OnErrorExit(func() {
		rt.logger.Info("remote reachable again")
		doc.SetConnectivity(engine.State().String())
	})
	pages.OnLoaded(func(name string) {
		rt.logger.Debug("page loaded", "page", name)
		doc.SetPage(name)
	})

	return rt, nil
}

// source picks the asset source: an embedded or injected filesystem, a
// remote base URL or a local directory.
func (c *Console) source() (module.Source, error) {
	switch {
	case c.cfg.assetFS != nil:
		return module.FSSource{FS: c.cfg.assetFS}, nil
	case strings.HasPrefix(c.cfg.assets, "http://"), strings.HasPrefix(c.cfg.assets, "https://"):
		return module.NewHTTPSource(c.cfg.assets, c.cfg.requestTimeout)
	default:
		info, err := os.Stat(c.cfg.assets)
		if err != nil {
			return nil, fmt.Errorf("assets: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assets: %s is not a directory", c.cfg.assets)
		}
		return module.FSSource{FS: os.DirFS(c.cfg.assets)}, nil
	}
}

// run starts the loop goroutine and the poll ticker.
func (rt *runtime) run(ctx context.Context) {
	go rt.loop.Run(ctx)
	rt.engine.Start(ctx)
}

func (rt *runtime) loadStartPage() {
	rt.loop.Post(func() {
		rt.pages.Load(rt.ctx, rt.startPage, rt.startSlot, func() {
			rt.logger.Info("start page ready", "page", rt.startPage)
		}, nil, nil)
	})
}
