package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/otic-foundation/chatrelay/pkg/chat"
	"github.com/otic-foundation/chatrelay/pkg/logging"
)

// Service metadata reported by the root endpoint
const (
	ServiceName        = "chatrelay"
	ServiceVersion     = "1.0.0"
	ServiceDescription = "Guarded streaming chat relay for the Otic Foundation assistant"
)

// Server exposes the chat service over HTTP
type Server struct {
	service *chat.Service
	logger  logging.Logger
	router  chi.Router
}

// Option represents an option for configuring the server
type Option func(*Server)

// WithLogger sets the logger for the server
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server around the chat service
func New(service *chat.Service, options ...Option) *Server {
	server := &Server{
		service: service,
		logger:  logging.New(),
	}

	for _, option := range options {
		option(server)
	}

	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(accessLog(server.logger))
	router.Use(cors)

	router.Get("/", server.handleRoot)
	router.Get("/health", server.handleHealth)
	router.Post("/chat", server.handleChat)

	server.router = router
	return server
}

// Handler returns the HTTP handler for mounting or testing
func (s *Server) Handler() http.Handler {
	return s.router
}
