// Package server exposes loaded domain definitions and their lifecycle
// operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbweber/crucible/api/v1alpha1"
	"github.com/jbweber/crucible/internal/domain"
	"github.com/jbweber/crucible/internal/lifecycle"
	"github.com/jbweber/crucible/internal/output"
)

// Controller runs lifecycle operations on one libvirt driver.
//
// In production, this is satisfied by *lifecycle.Manager.
type Controller interface {
	Start(ctx context.Context, d domain.Domain) error
	Shutdown(ctx context.Context, d domain.Domain, timeout time.Duration) error
	Destroy(ctx context.Context, d domain.Domain) error
	Suspend(ctx context.Context, d domain.Domain) error
	Resume(ctx context.Context, d domain.Domain) error
	Delete(ctx context.Context, d domain.Domain) error

	Domains() []*lifecycle.StartedDomain
	ListDomains(ctx context.Context) ([]lifecycle.DomainInfo, error)
}

// Server routes requests to the controller of each definition's driver.
type Server struct {
	log      logr.Logger
	gatherer prometheus.Gatherer

	// kinds is the listing order of drivers
	kinds   []string
	drivers map[string]Controller

	mu      sync.RWMutex
	domains map[string]domain.Domain
}

// New returns a server driving virtual machines through vms and containers
// through containers. Metrics are served from gatherer.
func New(vms, containers Controller, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	return &Server{
		log:      log,
		gatherer: gatherer,
		kinds:    []string{v1alpha1.VirtualMachineKind, v1alpha1.ContainerKind},
		drivers: map[string]Controller{
			v1alpha1.VirtualMachineKind: vms,
			v1alpha1.ContainerKind:      containers,
		},
		domains: make(map[string]domain.Domain),
	}
}

// KindOf returns the resource kind d was loaded from.
func KindOf(d domain.Domain) string {
	if _, ok := d.(*domain.Container); ok {
		return v1alpha1.ContainerKind
	}
	return v1alpha1.VirtualMachineKind
}

// Add makes d available by name. Names are unique across kinds.
func (s *Server) Add(d domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := d.Config().Name
	if _, ok := s.domains[name]; ok {
		return fmt.Errorf("domain %q is defined more than once", name)
	}
	s.domains[name] = d
	return nil
}

func (s *Server) lookup(name string) (domain.Domain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[name]
	return d, ok
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			s.log.V(1).Info("Failed to write health response", "error", err.Error())
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/domains", func(r chi.Router) {
		r.Get("/", s.listDomains)
		r.Post("/{name}/{operation}", s.runOperation)
	})
	return r
}

func (s *Server) listDomains(w http.ResponseWriter, req *http.Request) {
	var statuses []output.DomainStatus
	var failed int
	for _, kind := range s.kinds {
		ctl := s.drivers[kind]

		infos, err := ctl.ListDomains(req.Context())
		if err != nil {
			s.log.Error(err, "Failed to list domains", "kind", kind)
			failed++
			continue
		}

		startedAt := make(map[string]time.Time)
		for _, sd := range ctl.Domains() {
			startedAt[sd.Domain.Config().UUID] = sd.StartedAt
		}

		for _, info := range infos {
			status := output.DomainStatus{
				Name:   info.Name,
				Kind:   info.Kind,
				UUID:   info.UUID,
				State:  string(info.State),
				VCPUs:  info.VCPUs,
				Memory: info.Memory,
			}
			if status.Kind == "" {
				status.Kind = kind
			}
			if t, ok := startedAt[info.UUID]; ok {
				status.StartedAt = &t
			}
			statuses = append(statuses, status)
		}
	}
	if failed == len(s.kinds) {
		s.writeError(w, http.StatusBadGateway, errors.New("failed to reach libvirt"))
		return
	}

	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	if statuses == nil {
		statuses = []output.DomainStatus{}
	}
	s.writeJSON(w, http.StatusOK, statuses)
}

type operationFunc func(ctx context.Context, ctl Controller, d domain.Domain, req *http.Request) error

var operations = map[string]struct {
	done string
	run  operationFunc
}{
	"start": {"started", func(ctx context.Context, ctl Controller, d domain.Domain, _ *http.Request) error {
		return ctl.Start(ctx, d)
	}},
	"shutdown": {"shut down", func(ctx context.Context, ctl Controller, d domain.Domain, req *http.Request) error {
		timeout, err := shutdownTimeout(req)
		if err != nil {
			return err
		}
		return ctl.Shutdown(ctx, d, timeout)
	}},
	"destroy": {"destroyed", func(ctx context.Context, ctl Controller, d domain.Domain, _ *http.Request) error {
		return ctl.Destroy(ctx, d)
	}},
	"suspend": {"suspended", func(ctx context.Context, ctl Controller, d domain.Domain, _ *http.Request) error {
		return ctl.Suspend(ctx, d)
	}},
	"resume": {"resumed", func(ctx context.Context, ctl Controller, d domain.Domain, _ *http.Request) error {
		return ctl.Resume(ctx, d)
	}},
	"delete": {"deleted", func(ctx context.Context, ctl Controller, d domain.Domain, _ *http.Request) error {
		return ctl.Delete(ctx, d)
	}},
}

// badRequest marks errors caused by the request itself.
type badRequest struct{ error }

// shutdownTimeout reads the optional timeout query parameter. Zero leaves
// the definition's timeout in effect.
func shutdownTimeout(req *http.Request) (time.Duration, error) {
	v := req.URL.Query().Get("timeout")
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, badRequest{fmt.Errorf("invalid timeout %q", v)}
	}
	return d, nil
}

type operationResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

func (s *Server) runOperation(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	opName := chi.URLParam(req, "operation")

	op, ok := operations[opName]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown operation %q", opName))
		return
	}
	d, ok := s.lookup(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no definition named %q", name))
		return
	}

	log := s.log.WithValues("name", name, "operation", opName)
	if err := op.run(req.Context(), s.drivers[KindOf(d)], d, req); err != nil {
		code := statusCode(err)
		if code >= http.StatusInternalServerError {
			log.Error(err, "Lifecycle operation failed")
		} else {
			log.Info("Lifecycle operation refused", "reason", err.Error())
		}
		s.writeError(w, code, err)
		return
	}

	log.Info("Lifecycle operation completed")
	s.writeJSON(w, http.StatusOK, operationResult{Name: name, Result: op.done})
}

// statusCode maps a lifecycle error to an HTTP status.
func statusCode(err error) int {
	var br badRequest
	var lerr *lifecycle.Error
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case lifecycle.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &lerr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.V(1).Info("Failed to write response", "error", err.Error())
	}
}
