package cmd

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "List known people",
	RunE:  runPersonsList,
}

var personsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a person and all their reference data",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsRemove,
}

var registerCmd = &cobra.Command{
	Use:   "register <name> <image>",
	Short: "Register a reference image for a person",
	Long: `Add a reference image for a person. The image must pass quality checks
(size, sharpness, brightness) and contain a detectable face. The person is
created on first registration.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

func init() {
	personsCmd.AddCommand(personsRemoveCmd)
	rootCmd.AddCommand(personsCmd)
	rootCmd.AddCommand(registerCmd)
}

func runPersonsList(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.engine.Load(context.Background()); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}

	names := c.engine.Names()
	if len(names) == 0 {
		fmt.Println("No people registered")
		return nil
	}
	for _, name := range names {
		fmt.Printf("%s (%d images)\n", name, c.engine.ImageCount(name))
	}
	return nil
}

func runPersonsRemove(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	ctx := context.Background()
	if err := c.engine.Load(ctx); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	if err := c.engine.RemovePerson(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	name, imagePath := args[0], args[1]

	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	ctx := context.Background()
	if err := c.engine.Load(ctx); err != nil {
		return fmt.Errorf("loading known faces: %w", err)
	}
	ok, err := c.engine.Register(ctx, img, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no usable face in %s", imagePath)
	}

	fmt.Printf("Registered %s (%d images)\n", name, c.engine.ImageCount(name))
	return nil
}
