package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/scheduler"
	"github.com/KP-101219/Quickroll-V2/internal/web"
	"github.com/KP-101219/Quickroll-V2/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Quickroll API server.
The server exposes student enrollment, recognition and attendance endpoints
and a websocket feed of attendance events. The recognition index is built
from the store at startup and optionally refreshed on RELOAD_INTERVAL.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()
	cfg := e.cfg

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	stats, err := e.controller.Reload(ctx)
	if err != nil {
		fmt.Printf("Warning: initial index load failed: %v\n", err)
		fmt.Printf("Recognition will report UNKNOWN until a reload succeeds\n")
	} else {
		fmt.Printf("Recognition index ready: %d students, %d embeddings\n", stats.Students, stats.Embeddings)
	}

	sched, err := scheduler.New(e.controller, cfg.Recognition.ReloadInterval, cfg.Attendance.Location())
	if err != nil {
		return fmt.Errorf("creating reload scheduler: %w", err)
	}
	if sched != nil {
		sched.Start()
		fmt.Printf("Periodic index reload every %s\n", cfg.Recognition.ReloadInterval)
	}

	server := web.NewServer(cfg, web.Services{
		Roster:     e.roster,
		Recognizer: e.recognizer,
		Reloader:   e.controller,
		Attendance: e.attendance,
		Hub:        handlers.NewLiveHub(),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		if sched != nil {
			sched.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Quickroll API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
