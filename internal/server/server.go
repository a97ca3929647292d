package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/config"
	"github.com/Tomlord1122/todo-tracker/internal/database"
	"github.com/Tomlord1122/todo-tracker/internal/service"
)

// Options holds the collaborators of the HTTP server. Metrics and Files are
// optional.
type Options struct {
	TodoService service.TodoService
	DB          database.Service
	Store       blob.Store
	Auth        *Authenticator
	Logger      *slog.Logger

	// Metrics serves the Prometheus exposition at /metrics.
	Metrics http.Handler
	// Files serves stored covers under FilesPrefix, e.g. "/storage".
	Files       http.Handler
	FilesPrefix string
}

type Server struct {
	cfg         config.ServerConfig
	todoService service.TodoService
	db          database.Service
	store       blob.Store
	auth        *Authenticator
	logger      *slog.Logger
	metrics     http.Handler
	files       http.Handler
	filesPrefix string
}

// New creates the application server. Use Handler to obtain the router.
func New(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		todoService: opts.TodoService,
		db:          opts.DB,
		store:       opts.Store,
		auth:        opts.Auth,
		logger:      logger,
		metrics:     opts.Metrics,
		files:       opts.Files,
		filesPrefix: opts.FilesPrefix,
	}
}

// NewServer wires the router into an *http.Server configured from cfg.
func NewServer(cfg config.ServerConfig, opts Options) *http.Server {
	appServer := New(cfg, opts)

	return &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(appServer.logger.Handler(), slog.LevelError),
	}
}
