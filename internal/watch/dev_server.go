package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/apinni/apinni/internal/generator"
)

// DefaultPort is the port of the development server.
const DefaultPort = 7331

// DevServer serves the outputs of the latest successful pass.
type DevServer struct {
	router       chi.Router
	reloadServer *ReloadServer
	httpServer   *http.Server
	logger       *zap.Logger

	mu      sync.RWMutex
	result  *generator.Result
	lastErr error
}

// NewDevServer creates a server broadcasting through reloadServer.
func NewDevServer(reloadServer *ReloadServer, logger *zap.Logger) *DevServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := &DevServer{reloadServer: reloadServer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", ds.handleHealth)
	r.Get("/types/{domain}", ds.handleTypes)
	r.Get("/schema/{domain}", ds.handleSchema)
	r.Get("/ws", reloadServer.HandleWebSocket)
	ds.router = r
	return ds
}

// Handler returns the HTTP handler of the server.
func (ds *DevServer) Handler() http.Handler {
	return ds.router
}

// Update records the outcome of a pass. A failed pass keeps the outputs of
// the last successful one.
func (ds *DevServer) Update(res *generator.Result, err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.lastErr = err
	if err == nil && res != nil {
		ds.result = res
	}
}

// Start listens on addr in the background.
func (ds *DevServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ds.httpServer = &http.Server{
		Handler:           ds.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := ds.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ds.logger.Error("dev server stopped", zap.Error(err))
		}
	}()
	ds.logger.Info("dev server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops the HTTP server.
func (ds *DevServer) Shutdown(ctx context.Context) error {
	if ds.httpServer == nil {
		return nil
	}
	return ds.httpServer.Shutdown(ctx)
}

func (ds *DevServer) domain(r *http.Request) *generator.DomainOutput {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.result == nil {
		return nil
	}
	return ds.result.Domain(chi.URLParam(r, "domain"))
}

func (ds *DevServer) handleTypes(w http.ResponseWriter, r *http.Request) {
	d := ds.domain(r)
	if d == nil {
		http.Error(w, "unknown domain", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(d.Types))
}

func (ds *DevServer) handleSchema(w http.ResponseWriter, r *http.Request) {
	d := ds.domain(r)
	if d == nil {
		http.Error(w, "unknown domain", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(d.SchemaJSON)
}

type healthResponse struct {
	Status  string   `json:"status"`
	Pass    string   `json:"pass,omitempty"`
	Domains []string `json:"domains,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (ds *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds.mu.RLock()
	body := healthResponse{Status: "ok"}
	status := http.StatusOK
	if ds.result != nil {
		body.Pass = ds.result.PassID.String()
		for _, d := range ds.result.Domains {
			body.Domains = append(body.Domains, d.Domain)
		}
	}
	if ds.lastErr != nil {
		body.Status = "error"
		body.Error = ds.lastErr.Error()
		status = http.StatusServiceUnavailable
	} else if ds.result == nil {
		body.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	ds.mu.RUnlock()

	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// SessionConfig configures a watch session.
type SessionConfig struct {
	Root     string
	Ignored  []string
	Debounce time.Duration
	// Serve starts the development server on Port.
	Serve bool
	Port  int
	// Host defaults to localhost.
	Host string
}

// Session watches sources and regenerates until its context ends.
type Session struct {
	config  SessionConfig
	builder Builder
	logger  *zap.Logger

	// OnResult, when set, is called after every pass.
	OnResult func(*generator.Result, error)
	// OnConfigChange, when set, is called with changed configuration files
	// before the pass they trigger.
	OnConfigChange func(files []string)
}

// NewSession creates a session.
func NewSession(builder Builder, config SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Host == "" {
		config.Host = "localhost"
	}
	return &Session{config: config, builder: builder, logger: logger}
}

// Run performs an initial pass, then regenerates on every relevant change
// until ctx is done. A failing initial pass does not stop the session.
func (s *Session) Run(ctx context.Context) error {
	reload := NewReloadServer(s.logger)
	defer reload.Close()

	var server *DevServer
	onResult := func(res *generator.Result, err error) {
		if server != nil {
			server.Update(res, err)
		}
		if s.OnResult != nil {
			s.OnResult(res, err)
		}
	}
	if s.config.Serve {
		server = NewDevServer(reload, s.logger)
		if err := server.Start(net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	runner := NewRunner(s.builder, reload, onResult, s.logger)
	runner.RunOnce(ctx, nil)

	watcher, err := NewFileWatcher(WatcherConfig{
		Root:     s.config.Root,
		Ignored:  s.config.Ignored,
		Debounce: s.config.Debounce,
	}, func(files []string) error {
		impact := AnalyzeImpact(files)
		if impact.Scope == ScopeConfig && s.OnConfigChange != nil {
			s.OnConfigChange(impact.Configs)
		}
		runner.Trigger(ctx, files)
		return nil
	}, s.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}

	<-ctx.Done()
	watcher.Stop()
	runner.Wait()
	return nil
}
