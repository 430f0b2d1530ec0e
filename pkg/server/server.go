package server

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"

	"github.com/oarkflow/calc"
	"github.com/oarkflow/calc/pkg/config"
	"github.com/oarkflow/calc/pkg/storage"
)

type Config struct {
	Version   string
	AccessLog bool
}

// Server exposes the evaluator over HTTP. Sessions keep an environment
// between requests and expire after the configured idle time.
type Server struct {
	app      *fiber.App
	config   Config
	settings *config.Config
	store    *storage.Store
	logger   *log.Logger
	programs *ristretto.Cache

	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
}

type session struct {
	mu       sync.Mutex
	id       string
	env      *calc.Environment
	created  time.Time
	lastUsed time.Time
}

type Option func(*Server)

func WithStore(store *storage.Store) Option {
	return func(s *Server) { s.store = store }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func NewServer(cfg Config, settings *config.Config, opts ...Option) (*Server, error) {
	if settings == nil {
		settings = config.Default()
	}
	size := int64(settings.Server.CacheSize)
	if size <= 0 {
		size = 1
	}
	programs, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder: func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})
	server := &Server{
		app:      app,
		config:   cfg,
		settings: settings,
		logger:   &log.DefaultLogger,
		programs: programs,
		sessions: map[string]*session{},
		ttl:      settings.Server.SessionTTL(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())
	if s.config.AccessLog {
		s.app.Use(logger.New())
	}

	s.app.Get("/api/health", s.healthHandler)

	s.app.Post("/api/eval", s.evalHandler)
	s.app.Post("/api/tokenize", s.tokenizeHandler)
	s.app.Post("/api/parse", s.parseHandler)

	s.app.Post("/api/sessions", s.createSessionHandler)
	s.app.Get("/api/sessions/:id/env", s.sessionEnvHandler)
	s.app.Delete("/api/sessions/:id", s.deleteSessionHandler)
	s.app.Post("/api/sessions/:id/save", s.saveWorkspaceHandler)
	s.app.Post("/api/sessions/:id/load", s.loadWorkspaceHandler)

	s.app.Get("/api/workspaces", s.workspacesHandler)
	s.app.Delete("/api/workspaces/:name", s.deleteWorkspaceHandler)
	s.app.Get("/api/history", s.historyHandler)
	s.app.Delete("/api/history", s.clearHistoryHandler)
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves on addr and sweeps idle sessions until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	if s.ttl > 0 {
		go s.janitor(ctx)
	}
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	s.logger.Info().Str("address", addr).Msg("starting calc API server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down calc API server")
	s.programs.Close()
	return s.app.Shutdown()
}

func (s *Server) janitor(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sweep(now); n > 0 {
				s.logger.Info().Int("expired", n).Msg("expired idle sessions")
			}
		}
	}
}

// sweep drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Server) sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.lastUsed)
		sess.mu.Unlock()
		if idle > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// parse returns the program for source, reusing a cached parse when one
// exists. Parsed nodes are never mutated so they are shared between
// sessions.
func (s *Server) parse(source string) ([]calc.Node, bool, error) {
	if cached, ok := s.programs.Get(source); ok {
		return cached.([]calc.Node), true, nil
	}
	nodes, err := calc.ParseString(source)
	if err != nil {
		return nil, false, err
	}
	s.programs.Set(source, nodes, 1)
	return nodes, false, nil
}
