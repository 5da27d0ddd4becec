package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sentry/internal/attendance"
	"github.com/kozaktomas/face-sentry/internal/liveness"
	"github.com/kozaktomas/face-sentry/internal/notify"
	"github.com/kozaktomas/face-sentry/internal/pipeline"
	"github.com/kozaktomas/face-sentry/internal/tracker"
	"github.com/kozaktomas/face-sentry/internal/web"
	"github.com/kozaktomas/face-sentry/internal/web/handlers"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recognition pipeline with the web dashboard",
	Long: `Start the full recognition pipeline: frames are pulled from the camera
(via the detection sidecar) or replayed from a directory, faces are matched,
tracked and liveness-checked, and results go to the event store, attendance
log and notifier. The web API serves live status alongside.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("frames", "", "Replay frames from this directory instead of the camera")
	runCmd.Flags().Int("fps", 15, "Frame rate cap for the camera source")
	runCmd.Flags().Bool("no-web", false, "Run the pipeline without the web API")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Loading known faces...")
	if err := c.engine.Load(ctx); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}

	cfg := c.cfg
	trk := tracker.New(cfg.Tracker.Enabled, cfg.Tracker.MaxDisappeared, cfg.Tracker.MaxDistance)
	live := liveness.New(cfg.Liveness.Enabled, cfg.Liveness.BlinkThreshold,
		cfg.Liveness.TextureThreshold, cfg.Liveness.ColorThreshold, cfg.Liveness.MinBlinks)

	var att *attendance.Logger
	if cfg.Attendance.Enabled {
		att = attendance.New(cfg.Paths.AttendanceDir,
			time.Duration(cfg.Attendance.CooldownMinutes)*time.Minute)
	}

	var ntf *notify.Notifier
	if cfg.Notifications.Enabled {
		ntf = notify.New(cfg.Notifications)
	}

	pipe := pipeline.New(cfg, c.detector, c.engine, trk, live, c.store, att, ntf)

	src, err := buildFrameSource(cmd, c)
	if err != nil {
		return err
	}

	var server *web.Server
	if !mustGetBool(cmd, "no-web") {
		server = web.NewServer(cfg.Web, &handlers.API{
			Engine:     c.engine,
			Pipeline:   pipe,
			Store:      c.store,
			Attendance: att,
		})
		go func() {
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "web server: %v\n", err)
				cancel()
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	fmt.Printf("Pipeline %s running, press Ctrl+C to stop\n", pipe.RunID())
	err = pipe.Run(ctx, src)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", shutdownErr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildFrameSource(cmd *cobra.Command, c *components) (pipeline.FrameSource, error) {
	if dir := mustGetString(cmd, "frames"); dir != "" {
		src, err := pipeline.NewDirSource(dir)
		if err != nil {
			return nil, fmt.Errorf("opening frame directory: %w", err)
		}
		fmt.Printf("Replaying frames from %s\n", dir)
		return src, nil
	}

	camera := c.cfg.Camera
	fmt.Printf("Capturing from camera %d via %s\n", camera.Index, c.cfg.Detector.URL)
	return pipeline.NewCameraSource(c.detector, camera.Index, camera.Width, camera.Height,
		mustGetInt(cmd, "fps")), nil
}
