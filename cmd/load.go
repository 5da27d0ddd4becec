package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load reference images and warm the encoding cache",
	Long: `Scan the known faces directory, encode every reference image that is
missing from the encoding cache, and report the resulting state. Run this
after adding or replacing reference images to avoid paying the encoding cost
on pipeline startup.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	var bar *progressbar.ProgressBar
	c.engine.OnProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "encoding people")
		}
		bar.Set(done)
	}

	if err := c.engine.Load(context.Background()); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	if err := c.engine.Validate(); err != nil {
		return fmt.Errorf("validating matcher state: %w", err)
	}

	names := c.engine.Names()
	fmt.Printf("\nLoaded %d people, %d encodings\n", len(names), c.engine.EncodingCount())
	for _, name := range names {
		fmt.Printf("  %s (%d images)\n", name, c.engine.ImageCount(name))
	}
	return nil
}
