package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samvad-hq/samvad-news-desk/internal/config"
	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/logger"
	"github.com/samvad-hq/samvad-news-desk/internal/metrics"
	"github.com/samvad-hq/samvad-news-desk/internal/storage"
	"github.com/samvad-hq/samvad-news-desk/internal/web"
	"github.com/samvad-hq/samvad-news-desk/pkg/newsapi"
	"github.com/samvad-hq/samvad-news-desk/pkg/publishers"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Desk is the news desk runtime. It owns the query controller, the web surface
// and, when sinks are configured, the announcer with its ledger.
type Desk struct {
	cfg       *config.Config
	log       logger.Logger
	metrics   *metrics.Metrics
	ctrl      *controller.Controller
	fanout    *publishers.Fanout
	ledger    storage.Ledger
	announcer *Announcer
	handler   http.Handler
}

// NewDesk builds a desk runtime from config.
func NewDesk(ctx context.Context, cfg *config.Config, log logger.Logger) (*Desk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m := metrics.New(cfg.AppName, cfg.Env)

	client, err := newsapi.New(newsapi.Options{
		BaseURL:   cfg.NewsAPIBaseURL,
		APIKey:    cfg.NewsAPIKey,
		Country:   cfg.NewsCountry,
		Timeout:   cfg.NewsTimeout,
		UserAgent: cfg.NewsUserAgent,
		Log:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("init news api client: %w", err)
	}

	ctrl, err := controller.New(controller.Options{
		Source:  client,
		Delay:   cfg.Debounce,
		Log:     log,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("init controller: %w", err)
	}

	d := &Desk{cfg: cfg, log: log, metrics: m, ctrl: ctrl}
	if err := d.initAnnouncer(ctx); err != nil {
		ctrl.Dispose()
		return nil, err
	}

	if logger.ParseLevel(cfg.LogLevel) == zapcore.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := web.NewRouter(web.Options{
		Controller: ctrl,
		Log:        log,
		Observer:   m,
		Metrics:    m.Handler(),
	})
	if err != nil {
		d.closeSinks()
		ctrl.Dispose()
		return nil, fmt.Errorf("init web router: %w", err)
	}
	d.handler = router

	return d, nil
}

// initAnnouncer loads sinks and the ledger. Without a publishers file announcing is disabled.
func (d *Desk) initAnnouncer(ctx context.Context) error {
	if d.cfg.PublishersFile == "" {
		d.log.InfoObj("announcing disabled", "publishers_file", "")
		return nil
	}

	publisherReg, err := publishers.LoadRegistry(d.cfg.PublishersFile)
	if err != nil {
		return &config.ConfigurationError{Key: "publishers_file", Err: err}
	}
	enabled := publisherReg.Enabled()
	if len(enabled) == 0 {
		d.log.WarnObj("no enabled publishers; announcing disabled", "publishers_file", d.cfg.PublishersFile)
		return nil
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, d.log)
	if err != nil {
		return fmt.Errorf("build publishers: %w", err)
	}
	d.fanout = publishers.NewFanout(pubClients)
	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	d.log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	ledger, err := storage.NewLedger(d.cfg.StorageType, d.cfg.BBoltPath, storage.Options{
		TTL:             d.cfg.StorageTTL,
		CleanupInterval: d.cfg.StorageCleanupInterval,
	})
	if err != nil {
		d.closeSinks()
		return fmt.Errorf("init storage: %w", err)
	}
	d.ledger = ledger
	d.log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     d.cfg.StorageType,
		"path":                     d.cfg.BBoltPath,
		"ttl_seconds":              int(d.cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(d.cfg.StorageCleanupInterval.Seconds()),
	})

	d.announcer, err = NewAnnouncer(d.ctrl, ledger, d.fanout, d.metrics, d.log)
	if err != nil {
		d.closeSinks()
		return err
	}
	return nil
}

// Handler exposes the HTTP surface.
func (d *Desk) Handler() http.Handler { return d.handler }

// Controller exposes the query controller.
func (d *Desk) Controller() *controller.Controller { return d.ctrl }

// Run listens on the configured address and serves until ctx is cancelled.
func (d *Desk) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.HTTPAddr)
	if err != nil {
		d.shutdown()
		return fmt.Errorf("listen on %s: %w", d.cfg.HTTPAddr, err)
	}
	return d.Serve(ctx, ln)
}

// Serve issues the startup fetch, then serves on ln until ctx is cancelled.
// On return the controller is disposed and sinks and storage are closed.
func (d *Desk) Serve(ctx context.Context, ln net.Listener) error {
	if d == nil || d.ctrl == nil {
		return fmt.Errorf("desk is not initialized")
	}
	defer d.shutdown()

	srv := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := d.ctrl.Start(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start controller: %w", err)
	}

	if d.announcer != nil {
		g.Go(func() error { return d.announcer.Run(gctx) })
	}

	g.Go(func() error {
		d.log.InfoObj("http server listening", "http_addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		d.log.InfoObj("desk shutting down", "reason", context.Cause(gctx).Error())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		d.ctrl.Dispose()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// shutdown disposes the controller and releases sinks and storage.
func (d *Desk) shutdown() {
	d.ctrl.Dispose()
	d.closeSinks()
}

func (d *Desk) closeSinks() {
	if d.fanout != nil {
		if err := d.fanout.Close(); err != nil {
			d.log.ErrorObj("publishers close failed", "error", err.Error())
		}
		d.fanout = nil
	}
	if d.ledger != nil {
		if err := d.ledger.Close(); err != nil {
			d.log.ErrorObj("storage close failed", "error", err.Error())
		}
		d.ledger = nil
	}
}
