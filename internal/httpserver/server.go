package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Server is the order-record API process.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// New builds a Server serving the order-record API. Write and read timeouts
// leave room for multipart proof and photo uploads.
func New(addr string, logger *log.Logger, db *pgxpool.Pool, deps Deps) (*Server, error) {
	router, err := buildRouter(logger, db, deps)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: logger,
	}, nil
}

func (s *Server) ListenAndServe() error {
	s.logger.Printf("httpserver: listening addr=%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight transitions before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Printf("httpserver: draining connections")
	return s.httpServer.Shutdown(ctx)
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

func dbCheck(db *pgxpool.Pool) readinessCheck {
	return readinessCheck{name: "db", check: func(ctx context.Context) error {
		if db == nil {
			return errors.New("not configured")
		}
		if err := db.Ping(ctx); err != nil {
			return errors.New("not reachable")
		}
		return nil
	}}
}

func artifactCheck(dir string) readinessCheck {
	return readinessCheck{name: "artifacts", check: func(context.Context) error {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		if !info.IsDir() {
			return errors.New("not a directory")
		}
		return nil
	}}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyHandler runs every check and reports the failing ones by name.
func readyHandler(checks ...readinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		failed := gin.H{}
		for _, rc := range checks {
			if err := rc.check(ctx); err != nil {
				failed[rc.name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
