package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// HTTPServerWorker serves HTTP until the context is canceled, then drains.
type HTTPServerWorker struct {
	log    *slog.Logger
	server *http.Server
}

func NewHTTPServerWorker(log *slog.Logger, server *http.Server) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, server: server}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", w.server.Addr)
		errChan <- w.server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := <-errChan; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// GRPCServerWorker serves gRPC on address until the context is canceled.
type GRPCServerWorker struct {
	log     *slog.Logger
	address string
	server  *grpc.Server
}

func NewGRPCServerWorker(log *slog.Logger, address string, server *grpc.Server) *GRPCServerWorker {
	return &GRPCServerWorker{log: log, address: address, server: server}
}

func (w *GRPCServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", w.address, "at", time.Now().UTC())
		for serviceName := range w.server.GetServiceInfo() {
			w.log.Debug("gRPC exposed service", "name", serviceName)
		}
		errChan <- w.server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("gRPC server: %w", err)
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			w.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			// Live Connect streams only end with their clients
			w.server.Stop()
		}
		return nil
	}
}
