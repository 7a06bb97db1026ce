package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shelfproc/internal/codec"
	"shelfproc/internal/enhance"
)

func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func newAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess <image>",
		Short: "Print contrast, brightness and sharpness for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(args[0])
			if err != nil {
				return err
			}
			img, err := codec.Decode(data)
			if err != nil {
				return err
			}
			cfg, err := enhance.LoadConfig(enhanceConfigPath)
			if err != nil {
				return err
			}
			m := enhance.Assess(img, cfg.Thresholds)
			if outputJSON {
				return printJSON(cmd, m)
			}
			out := cmd.OutOrStdout()
			b := img.Bounds()
			fmt.Fprintf(out, "Image:      %s (%dx%d)\n", args[0], b.Dx(), b.Dy())
			fmt.Fprintf(out, "Contrast:   %.2f (min %.0f)\n", m.Contrast, cfg.Thresholds.MinContrast)
			fmt.Fprintf(out, "Brightness: %.2f (%.0f..%.0f)\n", m.Brightness, cfg.Thresholds.MinBrightness, cfg.Thresholds.MaxBrightness)
			fmt.Fprintf(out, "Sharpness:  %.2f (min %.0f)\n", m.Sharpness, cfg.Thresholds.MinSharpness)
			fmt.Fprintf(out, "Enhance:    %v\n", m.NeedsEnhancement)
			return nil
		},
	}
}

func newEnhanceCmd() *cobra.Command {
	var (
		format  string
		quality int
	)
	cmd := &cobra.Command{
		Use:   "enhance <input> <output>",
		Short: "Run the enhancement pipeline on one file",
		Long: `Run assess, transform and validate on one image and write the result.

The output is always written: when the pipeline skips, rejects or falls
back, it holds the re-encoded original. The report printed afterwards says
which outcome applied.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(args[0])
			if err != nil {
				return err
			}
			img, err := codec.Decode(data)
			if err != nil {
				return err
			}
			enh, err := loadEnhancer()
			if err != nil {
				return err
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[1])), ".")
			}
			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}

			res := enh.Process(img)
			encoded, err := codec.NewEncoder(f, quality).Encode(res.Output)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], encoded, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}

			report := enh.Report(res)
			if outputJSON {
				return printJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Outcome:  %s", res.Outcome)
			if reason := res.Reason(); reason != "" {
				fmt.Fprintf(out, " (%s)", reason)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Before:   contrast %.2f brightness %.2f sharpness %.2f\n",
				res.QualityBefore.Contrast, res.QualityBefore.Brightness, res.QualityBefore.Sharpness)
			if res.QualityAfter != nil {
				fmt.Fprintf(out, "After:    contrast %.2f brightness %.2f sharpness %.2f\n",
					res.QualityAfter.Contrast, res.QualityAfter.Brightness, res.QualityAfter.Sharpness)
			}
			for _, s := range res.Stages {
				fmt.Fprintf(out, "  %-10s %5dms\n", s.Name, s.DurationMS)
			}
			if res.Err != "" {
				fmt.Fprintf(out, "Error:    %s\n", res.Err)
			}
			fmt.Fprintf(out, "Wrote:    %s (%d bytes, %s)\n", args[1], len(encoded), res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format: jpeg or webp (default from the output extension)")
	cmd.Flags().IntVar(&quality, "quality", codec.MinJPEGQuality, "Output quality")
	return cmd
}
