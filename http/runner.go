// Package http provides common HTTP server utilities for ixoded.
// This file contains the RunServer helper for standardized process
// lifecycle management: start, signal handling, graceful shutdown.
package http

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"ixode.dev/core/common"
)

// RunServerConfig contains configuration for running ixoded's HTTP surface.
type RunServerConfig struct {
	ServiceName string
	Version     string

	Port            int
	Debug           bool
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64

	Logger *common.ContextLogger
}

func DefaultRunServerConfig(serviceName, version string) RunServerConfig {
	return RunServerConfig{
		ServiceName:     serviceName,
		Version:         version,
		Port:            8080,
		BodyLimit:       "10M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// SetupFunc wires routes and handlers onto an Echo instance before it
// starts serving.
type SetupFunc func(*echo.Echo) error

// RunServer creates an Echo server with the standard middleware stack, lets
// setupFunc register routes, then blocks until SIGINT/SIGTERM and shuts
// down gracefully within ShutdownTimeout.
func RunServer(config RunServerConfig, setupFunc SetupFunc) error {
	logger := config.Logger
	if logger == nil {
		logger = common.ComponentLogger(config.ServiceName)
	}

	e := NewEchoServer(ServerConfig{
		Port:            config.Port,
		Debug:           config.Debug,
		BodyLimit:       config.BodyLimit,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		ShutdownTimeout: config.ShutdownTimeout,
		AllowedOrigins:  config.AllowedOrigins,
		RateLimit:       config.RateLimit,
	})
	e.HTTPErrorHandler = CustomHTTPErrorHandler
	e.GET("/health", HealthCheckHandler(config.ServiceName, config.Version))

	if setupFunc != nil {
		if err := setupFunc(e); err != nil {
			return fmt.Errorf("setup function failed: %w", err)
		}
	}

	go func() {
		logger.Infof("Starting %s on port %d", config.ServiceName, config.Port)
		if err := e.Start(fmt.Sprintf(":%d", config.Port)); err != nil {
			logger.WithError(err).Error("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
		return err
	}

	logger.Info("Server stopped")
	return nil
}
