// Package scenarios serves the end-to-end scenario pages: a templated app
// shell per scenario and framework version, plus the static scenario tree.
package scenarios

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"nginspector/internal/logging"
)

// Page is the data rendered into the base template.
type Page struct {
	AngularVersion string
	Scenario       string
	ScenarioPath   string
}

// Server hosts the scenario pages.
type Server struct {
	root     string
	template string
	port     int

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
}

// New prepares a server for the given static root and template file.
// Port 0 picks a free port.
func New(root, templatePath string, port int) *Server {
	return &Server{root: root, template: templatePath, port: port}
}

// Handler returns the routing for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /app/{scenario}/{angularVersion}", s.handleApp)
	mux.HandleFunc("GET /app/{scenario}/{angularVersion}/{$}", s.handleApp)
	mux.Handle("/", http.FileServer(http.Dir(s.root)))
	return mux
}

func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	page := Page{
		AngularVersion: r.PathValue("angularVersion"),
		Scenario:       r.PathValue("scenario"),
	}
	page.ScenarioPath = "../" + page.Scenario + ".html"

	tmpl, err := template.ParseFiles(s.template)
	if err != nil {
		logging.Get(logging.CategoryScenarios).Error("load template: %v", err)
		http.Error(w, "template unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, page); err != nil {
		logging.Get(logging.CategoryScenarios).Error("render %s/%s: %v", page.Scenario, page.AngularVersion, err)
		return
	}
	logging.Get(logging.CategoryScenarios).Debug("served %s on %s", page.Scenario, page.AngularVersion)
}

// Start binds the listener on all interfaces and serves in the background.
// It returns once the port is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("scenario server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener = listener
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Get(logging.CategoryScenarios).Error("serve: %v", err)
		}
	}()
	logging.Scenarios("Serving scenarios on port %d", boundPort(listener))
	return nil
}

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	logging.Scenarios("Scenario server stopped")
	return err
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the localhost URL of the running server.
func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	port := s.port
	if s.listener != nil {
		port = boundPort(s.listener)
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

func boundPort(l net.Listener) int {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Scenarios lists the scenario names available in the static root.
func (s *Server) Scenarios() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read scenarios root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".html" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".html"))
	}
	sort.Strings(names)
	return names, nil
}
