package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/socialspy/internal/config"
	"github.com/ppiankov/socialspy/internal/record"
)

// runFlags are shared by search and competitors.
type runFlags struct {
	platforms []string
	window    string
	minViews  int64
	formats   []string
	outputDir string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.platforms, "platform", "p", nil, "platforms to query: youtube, instagram, tiktok or all (default from config)")
	cmd.Flags().StringVarP(&f.window, "window", "w", "", "time window: 24h, 7d, 30d or all (default from config)")
	cmd.Flags().Int64Var(&f.minViews, "min-views", -1, "minimum view count (default from config)")
	cmd.Flags().StringSliceVarP(&f.formats, "format", "f", nil, "export formats: json, csv, sqlite (default from config)")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "output directory (default from config)")
}

func (f *runFlags) reset() {
	*f = runFlags{minViews: -1}
}

// apply overlays the flags on spec, falling back to cfg.
func (f *runFlags) apply(spec *record.QuerySpec, cfg *config.Config) error {
	window := cfg.TimeWindow()
	if f.window != "" {
		w, err := record.ParseTimeWindow(f.window)
		if err != nil {
			return err
		}
		window = w
	}
	spec.TimeWindow = window

	spec.MinViewThreshold = cfg.MinViews()
	if f.minViews >= 0 {
		spec.MinViewThreshold = f.minViews
	}

	if spec.Mode == record.ModeQuery {
		platforms, err := parsePlatforms(f.platforms, cfg.Platforms())
		if err != nil {
			return err
		}
		spec.Platforms = platforms
	} else if len(f.platforms) > 0 {
		platforms, err := parsePlatforms(f.platforms, nil)
		if err != nil {
			return err
		}
		keep := make(map[record.Platform]bool, len(platforms))
		for _, p := range platforms {
			keep[p] = true
		}
		var filtered []record.Platform
		for _, p := range spec.Platforms {
			if keep[p] {
				filtered = append(filtered, p)
			}
		}
		spec.Platforms = filtered
	}
	return nil
}

var searchFlags = runFlags{minViews: -1}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search platforms by keyword and export popular results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchAction,
}

func init() {
	searchFlags.register(searchCmd)
}

func searchAction(cmd *cobra.Command, args []string) error {
	keyword := strings.TrimSpace(strings.Join(args, " "))
	if keyword == "" {
		return errors.New("keyword is required")
	}

	a, err := newApp(searchFlags.formats)
	if err != nil {
		return err
	}

	spec := record.NewKeywordQuery(keyword)
	if err := searchFlags.apply(&spec, a.cfg); err != nil {
		return err
	}
	return a.run(commandContext(cmd), spec, searchFlags.outputDir)
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
