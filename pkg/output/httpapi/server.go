// Package httpapi serves the latest readings over HTTP.
package httpapi

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ericogr/max6675-to-mqtt/pkg/config"
	"github.com/ericogr/max6675-to-mqtt/pkg/output"
	"github.com/ericogr/max6675-to-mqtt/pkg/sensor"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

const DefaultListen = ":8080"

// Server represents the API server. Publish replaces the readings it serves.
type Server struct {
	app *fiber.App
	ln  net.Listener

	mu       sync.RWMutex
	readings []sensor.Reading
	updated  time.Time
	now      func() time.Time
}

// NewServer creates the API server without starting it.
func NewServer() *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "max6675-to-mqtt",
		AppName:               "max6675-to-mqtt",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(logger.New())

	s := &Server{app: app, now: time.Now}
	s.setupRoutes()
	return s
}

// NewHTTP binds cfg.Listen, then serves on it in the background. Bind
// errors are returned to the caller.
func NewHTTP(cfg config.HTTPConfig) (output.Output, error) {
	addr := cfg.Listen
	if addr == "" {
		addr = DefaultListen
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("http listen %s: %w", addr, err)
	}
	s := NewServer()
	s.ln = ln
	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("http api stopped: %v", err)
		}
	}()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/temperatures", s.getTemperatures)
	api.Get("/temperatures/:name", s.getTemperature)

	// Health check
	api.Get("/health", s.healthCheck)
}

// Start starts the API server
func (s *Server) Start(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Publish(readings []sensor.Reading) error {
	cp := make([]sensor.Reading, len(readings))
	copy(cp, readings)
	s.mu.Lock()
	s.readings = cp
	s.updated = s.now()
	s.mu.Unlock()
	return nil
}

// Close gracefully shuts down the server and closes its listener.
func (s *Server) Close() error {
	err := s.app.Shutdown()
	if s.ln != nil {
		if cerr := s.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) snapshot() ([]sensor.Reading, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings, s.updated
}
