package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/crucible/internal/config"
	crlibvirt "github.com/jbweber/crucible/internal/libvirt"
	"github.com/jbweber/crucible/internal/server"
)

var definitionsDir string

func init() {
	serveCmd.Flags().StringVar(&definitionsDir, "definitions", "/etc/crucible/domains",
		"directory of domain definitions (*.yaml) to serve")
	serveCmd.Flags().String(config.KeyMetricsAddr, "", "address to serve the API and metrics on")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lifecycle daemon",
	Long: `Load every definition in the definitions directory and serve lifecycle
operations over HTTP until interrupted.

The daemon follows libvirt lifecycle events, so host resources of a domain
that stops on its own are released. Side effects that live in this process,
such as websockify proxies, stay up while it runs.

Endpoints:
  GET  /healthz
  GET  /metrics
  GET  /domains
  POST /domains/{name}/{start|shutdown|destroy|suspend|resume|delete}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := app.Log.WithName("serve")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		vms := app.Manager(crlibvirt.URIVMs, reg)
		containers := app.Manager(crlibvirt.URIContainers, reg)
		srv := server.New(vms, containers, reg, app.Log.WithName("server"))

		n, err := loadDefinitions(srv, definitionsDir)
		if err != nil {
			return err
		}
		log.Info("Loaded definitions", "dir", definitionsDir, "count", n)

		watcher, err := config.NewWatcher(map[string]config.Invalidator{
			app.Settings.OVMFDir:   app.Firmware,
			app.Settings.CPUMapDir: app.Models,
		}, app.Log.WithName("watch"))
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)
		for uri, handle := range map[string]crlibvirt.EventCallback{
			crlibvirt.URIVMs:        vms.HandleEvent,
			crlibvirt.URIContainers: containers.HandleEvent,
		} {
			events := crlibvirt.NewEventLoop(app.Connection(uri), app.Log.WithName("events"))
			events.Register(handle)
			g.Go(func() error { return events.Run(ctx) })
		}
		g.Go(func() error { return watcher.Run(ctx) })

		httpServer := &http.Server{
			Addr:              app.Settings.MetricsAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: time.Second,
		}
		g.Go(func() error {
			log.Info("Serving", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		log.Info("Stopped")
		return err
	},
}

// loadDefinitions adds every *.yaml definition in dir to srv. All files are
// tried and their failures reported together.
func loadDefinitions(srv *server.Server, dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("failed to read definitions: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return 0, err
	}

	var result error
	var n int
	for _, path := range paths {
		d, err := app.LoadDomain(path)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if err := srv.Add(d); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		n++
	}
	return n, result
}
