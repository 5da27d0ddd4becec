package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sentry/internal/attendance"
	"github.com/kozaktomas/face-sentry/internal/web"
	"github.com/kozaktomas/face-sentry/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API without the recognition pipeline",
	Long: `Serve the management API only: person registration and removal,
detection history and attendance. Useful on hosts that manage the face
database but do not run a camera.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Println("Loading known faces...")
	if err := c.engine.Load(context.Background()); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}

	var att *attendance.Logger
	if c.cfg.Attendance.Enabled {
		att = attendance.New(c.cfg.Paths.AttendanceDir,
			time.Duration(c.cfg.Attendance.CooldownMinutes)*time.Minute)
	}

	server := web.NewServer(c.cfg.Web, &handlers.API{
		Engine:     c.engine,
		Store:      c.store,
		Attendance: att,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Sentry API on http://%s:%d\n", c.cfg.Web.Host, c.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	return server.Start()
}
