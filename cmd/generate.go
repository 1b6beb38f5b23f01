package cmd

import (
	"fmt"
	"os"

	"github.com/quickfit/tryon/internal/validation"
	"github.com/spf13/cobra"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		personPath    string
		clothingPaths []string
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a single try-on from local image files",
		Example: `  tryon generate --person me.jpg --clothing shirt.png --output result.jpg
  tryon generate --person me.jpg --clothing top.jpg --clothing skirt.jpg -o outfit.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			person, err := os.ReadFile(personPath)
			if err != nil {
				return fmt.Errorf("failed to read person image: %w", err)
			}

			if err := validation.CheckCount(len(clothingPaths)); err != nil {
				return err
			}
			clothing := make([][]byte, 0, len(clothingPaths))
			for i, path := range clothingPaths {
				blob, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read clothing image %s: %w", path, err)
				}
				if err := validation.CheckSize(i+1, blob); err != nil {
					return err
				}
				clothing = append(clothing, blob)
			}

			service, err := newService(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			result, err := service.GenerateTryOn(cmd.Context(), person, clothing)
			if err != nil {
				return err
			}

			if err := os.WriteFile(outputPath, result.Image, 0644); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}

			if result.Fallback {
				fmt.Printf("No try-on image generated (%s); wrote normalized person image to %s\n", result.Reason, outputPath)
				return nil
			}
			fmt.Printf("Try-on image written to %s (%s, %d bytes)\n", outputPath, result.MIMEType, len(result.Image))
			return nil
		},
	}

	cmd.Flags().StringVar(&personPath, "person", "", "Path to the person photo")
	cmd.Flags().StringArrayVar(&clothingPaths, "clothing", nil, "Path to a clothing photo (repeat up to 3 times)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "tryon.jpg", "Where to write the result image")
	_ = cmd.MarkFlagRequired("person")
	_ = cmd.MarkFlagRequired("clothing")

	return cmd
}
