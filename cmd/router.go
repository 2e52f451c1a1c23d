package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"TiltifyBot/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

func SetupRouter(status api.StatusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", api.HandleHealthCheck)
	r.Get("/status", api.HandleStatus(status))

	return r
}

// listen opens an ngrok tunnel when a token is set, otherwise a local port.
func listen(ctx context.Context, port, ngrokToken string, log *zap.Logger) (net.Listener, error) {
	if ngrokToken == "" {
		log.Info("server running", zap.String("port", port))
		return net.Listen("tcp", ":"+port)
	}
	tun, err := ngrok.Listen(ctx, config.HTTPEndpoint(), ngrok.WithAuthtoken(ngrokToken))
	if err != nil {
		return nil, err
	}
	log.Info("server running", zap.String("url", tun.URL()))
	return tun, nil
}

// serve runs the status server on ln until ctx is done.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
