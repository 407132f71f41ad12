package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jbweber/crucible/internal/config"
	"github.com/jbweber/crucible/internal/cpu"
	"github.com/jbweber/crucible/internal/domain"
	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
	"github.com/jbweber/crucible/internal/lifecycle"
	"github.com/jbweber/crucible/internal/loader"
	"github.com/jbweber/crucible/internal/ovmf"
)

// App holds what the subcommands share: settings, the logger, firmware and
// CPU model caches, and one libvirt connection per driver.
type App struct {
	Settings *config.Settings
	Log      logr.Logger

	Models   *cpu.Catalog
	Firmware *ovmf.Cache

	zap   *zap.Logger
	conns map[string]*crlibvirt.Connection
}

// NewApp builds the logger and caches described by settings. Connections
// are opened lazily.
func NewApp(settings *config.Settings) (*App, error) {
	zl, err := newZapLogger(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	return &App{
		Settings: settings,
		Log:      zapr.NewLogger(zl),
		Models:   cpu.NewCatalog(settings.CPUMapDir),
		Firmware: ovmf.NewCache(settings.OVMFDir),
		zap:      zl,
		conns:    make(map[string]*crlibvirt.Connection),
	}, nil
}

func newZapLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return zl, nil
}

// LoaderOptions returns the options every definition is loaded with.
func (a *App) LoaderOptions() loader.Options {
	return loader.Options{
		Log:             a.Log,
		Models:          a.Models,
		Firmware:        a.Firmware,
		IDMappedRootDir: a.Settings.IDMappedRootDir,
	}
}

// LoadDomain loads a definition file.
func (a *App) LoadDomain(path string) (domain.Domain, error) {
	return loader.LoadFromFile(path, a.LoaderOptions())
}

// Connection returns the shared connection for a driver URI.
func (a *App) Connection(uri string) *crlibvirt.Connection {
	if c, ok := a.conns[uri]; ok {
		return c
	}

	var service crlibvirt.ServiceDelegate = crlibvirt.StartedService{}
	if a.Settings.ServiceUnit != "" {
		service = crlibvirt.SystemdService{Unit: a.Settings.ServiceUnit}
	}

	c := crlibvirt.NewConnection(crlibvirt.ConnectionConfig{
		SocketPath: a.Settings.Socket,
		URI:        uri,
		Timeout:    a.Settings.Timeout,
		Service:    service,
	}, a.Log.WithName("libvirt"))
	a.conns[uri] = c
	return c
}

// URIFor returns the driver URI serving d.
func URIFor(d domain.Domain) string {
	if _, ok := d.(*domain.Container); ok {
		return crlibvirt.URIContainers
	}
	return crlibvirt.URIVMs
}

// Manager returns a lifecycle manager for the driver at uri. Metrics go to
// reg, labeled with the driver, when reg is not nil.
func (a *App) Manager(uri string, reg prometheus.Registerer) *lifecycle.Manager {
	if reg != nil {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"driver": driverName(uri)}, reg)
	}
	return lifecycle.NewManager(a.Connection(uri), a.Log.WithName("lifecycle").WithValues("driver", driverName(uri)), lifecycle.Options{
		GracePeriod: a.Settings.GracePeriod,
		Registerer:  reg,
	})
}

func driverName(uri string) string {
	if uri == crlibvirt.URIContainers {
		return "lxc"
	}
	return "qemu"
}

// Close closes every connection and flushes the logger.
func (a *App) Close() {
	for uri, c := range a.conns {
		if err := c.Close(); err != nil {
			a.Log.Error(err, "Failed to close libvirt connection", "uri", uri)
		}
	}
	_ = a.zap.Sync()
}
