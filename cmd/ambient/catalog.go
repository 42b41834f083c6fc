package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chriscow/ambient-agents-go/pkg/audio/analysis"
	"github.com/chriscow/ambient-agents-go/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog commands",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the track catalog",
	Long: `Print the catalog the agent recommends from: the built-in tracks, or the
file named by the catalog config key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		lofi, _ := cmd.Flags().GetBool("lofi")

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		if lofi {
			if cat, err = catalog.New(cat.Filter(func(t catalog.Track) bool { return t.Lofi })); err != nil {
				return err
			}
		}

		logger.Debug("Listing catalog",
			slog.Int("tracks", cat.Len()),
			slog.String("format", format))
		return writeCatalog(cat, format, "")
	},
}

var catalogScanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Build a catalog by analyzing WAV files",
	Long: `Analyze every .wav file in a directory and print a catalog entry per
file with its duration, energy, acousticness and lofi flag. Tracks are
numbered track-001, track-002 and so on in filename order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		genre, _ := cmd.Flags().GetString("genre")
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		opts := analysis.ScanOptions{Genre: genre}
		switch analysis.Kind(kind) {
		case "":
		case analysis.KindMusic, analysis.KindEnvironment:
			opts.Kind = analysis.Kind(kind)
		default:
			return fmt.Errorf("--kind must be %s or %s, got %q", analysis.KindMusic, analysis.KindEnvironment, kind)
		}

		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts.Logger = logger

		ctx, cancel := signalContext()
		defer cancel()

		logger.Info("Scanning assets", slog.String("dir", args[0]))
		cat, err := analysis.ScanDir(ctx, args[0], opts)
		if err != nil {
			return err
		}
		logger.Info("Scan complete", slog.Int("tracks", cat.Len()))
		return writeCatalog(cat, format, out)
	},
}

// writeCatalog renders cat to path, or to stdout when path is empty.
func writeCatalog(cat *catalog.Catalog, format, path string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = cat.JSON()
	case "yaml":
		data, err = cat.YAML()
	default:
		return fmt.Errorf("--format must be json or yaml, got %q", format)
	}
	if err != nil {
		return err
	}

	if path == "" {
		_, err = fmt.Println(string(data))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func init() {
	catalogListCmd.Flags().String("format", "json", "Output format (json, yaml)")
	catalogListCmd.Flags().Bool("lofi", false, "Only list lofi tracks")

	catalogScanCmd.Flags().String("kind", "", "Treat every file as music or environment (default: classify)")
	catalogScanCmd.Flags().String("genre", "", "Genre written to every track (default: the kind)")
	catalogScanCmd.Flags().String("format", "json", "Output format (json, yaml)")
	catalogScanCmd.Flags().String("out", "", "Write the catalog to this file instead of stdout")

	catalogCmd.AddCommand(catalogListCmd, catalogScanCmd)
}
