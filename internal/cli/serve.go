package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/lethe/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the analysis timer",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, cfg, closeEngine, err := openEngine(context.Background())
	if err != nil {
		return err
	}
	defer closeEngine()

	fmt.Fprintf(os.Stderr, "  signal: %s\n", eng.Signal.Name())
	p := eng.Parameters()
	fmt.Fprintf(os.Stderr, "  policy: %s decay=%.2f threshold=%.2f auto=%v\n",
		p.Strategy, p.DecayRate, p.ForgettingThreshold, p.EnableAutoForgetting)

	go eng.StartAnalysisTimer(cfg.Analysis.Interval)

	srv := server.New(eng, VersionString(), cfg.Server.RateLimit)
	defer srv.Close()
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lethe serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", eng.DB.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
