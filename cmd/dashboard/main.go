package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/offers-dashboard/internal/config"
	"github.com/jrsteele09/offers-dashboard/internal/logging"
	"github.com/jrsteele09/offers-dashboard/server"
	"github.com/jrsteele09/offers-dashboard/server/loginsession"
	"github.com/jrsteele09/offers-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running dashboard")
	}
	log.Info().Msg("Dashboard stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	provider, closeProvider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer closeProvider()

	repo := loginsession.NewInMemoryLoginSessionRepo(provider, loginsession.Options{
		BaseURL:      c.GetAPIBaseURL(),
		Timeout:      c.GetAPITimeout(),
		PollInterval: c.GetPollInterval(),
	})
	defer repo.Close()

	handler, err := server.New(c, repo)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go handler.EvictIdleSessions(done)

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// newProvider builds the token store backend selected by SESSION_BACKEND
func newProvider(c config.Config) (sessions.Provider, func(), error) {
	noop := func() {}
	switch c.GetSessionBackend() {
	case config.SessionBackendMemory:
		log.Warn().Msg("Using in-memory session store, logins will not survive a restart")
		return sessions.NewMemoryProvider(), noop, nil
	case config.SessionBackendRedis:
		p, err := sessions.NewRedisProvider(c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(), c.GetRedisPrefix())
		if err != nil {
			return nil, noop, fmt.Errorf("redis session store: %w", err)
		}
		return p, func() {
			if err := p.Close(); err != nil {
				log.Err(err).Msg("Failed to close redis session store")
			}
		}, nil
	default:
		p, err := sessions.NewFileProvider(filepath.Join(c.GetDataFolder(), "sessions"), c.GetSessionSecret())
		if err != nil {
			return nil, noop, fmt.Errorf("file session store: %w", err)
		}
		return p, noop, nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Dashboard listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
