package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/banshee-data/buscluster/internal/api"
	"github.com/banshee-data/buscluster/internal/config"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/rpc"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen, grpcListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC detection service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("grpc-listen") {
				a.cfg.Server.GRPCListen = grpcListen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides server.listen)")
	cmd.Flags().StringVar(&grpcListen, "grpc-listen", "", "gRPC listen address, empty disables (overrides server.grpc_listen)")
	return cmd
}

func corsConfig(cfg *config.Config) api.CORSConfig {
	c := api.AllowAllCORS()
	if len(cfg.Server.CORSOrigins) > 0 {
		c.AllowedOrigins = cfg.Server.CORSOrigins
	}
	return c
}

// serve runs until ctx is cancelled, then shuts both servers down.
func serve(ctx context.Context, cfg *config.Config) error {
	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		monitoring.Logf("archiving runs to %s", store.Path())
	}

	metrics := monitoring.NewMetrics()
	p, err := newPipeline(cfg, metrics, store)
	if err != nil {
		return err
	}

	var admin api.AdminMounter
	if store != nil {
		admin = store
	}
	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewServer(p, metrics, admin).Handler(corsConfig(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcServer *grpc.Server
	var grpcLis net.Listener
	if cfg.Server.GRPCListen != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCListen)
		if err != nil {
			return err
		}
		grpcServer = rpc.NewGRPCServer(rpc.NewServer(p))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("HTTP server listening on %s", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	if grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitoring.Logf("gRPC server listening on %s", grpcLis.Addr())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
				cancel()
			}
		}()
	}

	<-ctx.Done()
	monitoring.Logf("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
	}

	wg.Wait()
	close(errCh)
	monitoring.Logf("graceful shutdown complete")
	return <-errCh
}
