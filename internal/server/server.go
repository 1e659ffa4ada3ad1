package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mpataki/mend/internal/config"
)

// AgentRunner executes one repair run against the project and returns its
// combined output.
type AgentRunner func(ctx context.Context) (string, error)

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	runner AgentRunner
	engine *gin.Engine
}

// New builds the HTTP boundary. A nil runner shells out to this binary's
// own run command.
func New(cfg *config.Config, logger *slog.Logger, runner AgentRunner) *Server {
	s := &Server{cfg: cfg, logger: logger, runner: runner}
	if s.runner == nil {
		s.runner = s.runAgentBinary
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/healthz", s.handleHealth)
	engine.POST("/api/run-agent", s.handleRunAgent)
	s.engine = engine

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Set("request_id", requestID)

		c.Next()

		s.logger.Info("request",
			"id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type runAgentRequest struct {
	Code string `json:"code"`
}

// handleRunAgent plants the submitted code as the project entry file and
// drives one agent run against it.
func (s *Server) handleRunAgent(c *gin.Context) {
	var req runAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}

	entryPath := filepath.Join(s.cfg.ProjectDir, s.cfg.EntryFile)
	if err := os.WriteFile(entryPath, []byte(req.Code), 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	output, err := s.runner(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"output": output})
}

// runAgentBinary re-invokes this executable's run command. A nonzero exit
// is not a fault here: the agent's failure report is exactly the output
// the caller wants back.
func (s *Server) runAgentBinary(ctx context.Context) (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, self, "run", "--project", s.cfg.ProjectDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", err
		}
	}

	if out := stdout.String(); out != "" {
		return out, nil
	}
	return stderr.String(), nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.engine,
		// A run blocks the handler for up to MaxTurns model round trips.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
