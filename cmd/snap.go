package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/camera/sim"
	"github.com/smazurov/stillcam/internal/logging"
	"github.com/smazurov/stillcam/internal/photos"
)

// CreateSnapCmd creates the snap command.
func CreateSnapCmd() *cobra.Command {
	var (
		count         int
		dir           string
		facing        string
		flash         string
		rotation      int
		upright       bool
		timeout       time.Duration
		convergeAfter int
		imageSize     int
		logJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Take still pictures and exit",
		Long: `Opens the camera, runs the preview until 3A converges, takes the requested number ` +
			`of still pictures and writes them to the output directory. Prints one line per photo.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("snap")

			f, err := camera.ParseFacing(facing)
			if err != nil {
				logger.Error("Invalid facing", "error", err)
				os.Exit(2)
			}
			mode, err := camera.ParseFlashMode(flash)
			if err != nil {
				logger.Error("Invalid flash mode", "error", err)
				os.Exit(2)
			}
			r, err := camera.RotationFromDegrees(rotation)
			if err != nil {
				logger.Error("Invalid rotation", "error", err)
				os.Exit(2)
			}

			saver, err := photos.NewSaver(photos.Options{Dir: dir, Upright: upright})
			if err != nil {
				logger.Error("Failed to prepare output directory", "error", err, "dir", dir)
				os.Exit(1)
			}

			backend := sim.New(sim.Options{
				FrameInterval: 10 * time.Millisecond,
				ConvergeAfter: convergeAfter,
				ImageFactory:  sim.JPEGFactory(imageSize),
			})
			ctrl := camera.NewController(camera.Options{
				Backend:  backend,
				Facing:   f,
				Flash:    mode,
				Rotation: r,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			paths, err := snap(ctx, ctrl, saver, count)
			if stopErr := ctrl.Stop(); stopErr != nil {
				logger.Warn("Errors while closing camera", "error", stopErr)
			}
			for _, line := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if err != nil {
				logger.Error("Capture failed", "error", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of pictures to take")
	cmd.Flags().StringVarP(&dir, "dir", "d", "photos", "Output directory")
	cmd.Flags().StringVar(&facing, "facing", string(camera.FacingBack), "Lens facing (back, front)")
	cmd.Flags().StringVar(&flash, "flash", string(camera.FlashAuto), "Flash policy (off, on, torch, auto, red-eye)")
	cmd.Flags().IntVar(&rotation, "rotation", 0, "Display rotation in degrees")
	cmd.Flags().BoolVar(&upright, "upright", false, "Rotate saved photos upright")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall deadline")
	cmd.Flags().IntVar(&convergeAfter, "converge-after", 3, "Simulated metering frames before 3A converges")
	cmd.Flags().IntVar(&imageSize, "image-size", 640, "Long side of simulated stills in pixels")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")

	return cmd
}

// snap opens the camera with a preview surface matching the default target
// and takes count pictures one after another. It returns one
// "<path> rotation=<deg>" line per saved photo.
func snap(ctx context.Context, ctrl *camera.Controller, saver *photos.Saver, count int) ([]string, error) {
	size := camera.DefaultTargetSize
	ctrl.SurfaceAvailable(size.Width, size.Height)
	if err := ctrl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start camera: %w", err)
	}
	if err := ctrl.WaitForState(ctx, camera.StatePreviewing); err != nil {
		return nil, fmt.Errorf("wait for preview: %w", err)
	}

	lines := make([]string, 0, count)
	for i := range count {
		photo, err := ctrl.TakePicture(ctx).Wait(ctx)
		if err != nil {
			return lines, fmt.Errorf("picture %d: %w", i+1, err)
		}
		path, err := saver.Save(photo)
		if err != nil {
			return lines, fmt.Errorf("save picture %d: %w", i+1, err)
		}
		lines = append(lines, fmt.Sprintf("%s rotation=%d", path, photo.Rotation))
	}
	return lines, nil
}
