package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gebo/internal"
	"github.com/starford/gebo/internal/merge"
	pkgconfig "github.com/starford/gebo/pkg/config"
)

var stdin = bufio.NewReader(os.Stdin)

// promptConfirm asks on the terminal before one backlink file is rewritten.
// Anything but an explicit yes declines that file; the merge carries on.
func promptConfirm(path, oldID, newID string) bool {
	fmt.Fprintf(os.Stderr, "retarget %s -> %s in %s? [y/N] ", oldID, newID, path)
	line, err := stdin.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")

	// The default config path is optional; an explicitly requested file is not.
	if !cmd.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}
	if err := pkgconfig.Load(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func twoArgs(cmd *cli.Command) (string, string, error) {
	if cmd.Args().Len() != 2 {
		return "", "", fmt.Errorf("expected SOURCE and DESTINATION arguments, got %d", cmd.Args().Len())
	}
	return cmd.Args().Get(0), cmd.Args().Get(1), nil
}

// applyMergeFlags folds one-shot command flags into the merge section.
// A one-shot session dies at exit, so --save defaults to true.
func applyMergeFlags(cfg *internal.Config, cmd *cli.Command) {
	cfg.Merge.AutoSave = cmd.Bool("save")
	if cmd.IsSet("discard") {
		cfg.Merge.AutoDiscard = cmd.Bool("discard")
	}
	if cmd.IsSet("trash") {
		cfg.Merge.UseTrash = cmd.Bool("trash")
	}
}

func mergeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "save", Value: true, Usage: "Persist rewritten files to disk"},
		&cli.BoolFlag{Name: "discard", Usage: "Drop clean merge buffers afterwards"},
		&cli.BoolFlag{Name: "trash", Usage: "Move the merged source to the trash directory instead of deleting it"},
		&cli.BoolFlag{Name: "confirm", Usage: "Ask before rewriting each backlink file"},
	}
}

func regionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "start", Required: true, Usage: "Region start byte offset (inclusive)"},
		&cli.IntFlag{Name: "end", Required: true, Usage: "Region end byte offset (exclusive)"},
		&cli.BoolFlag{Name: "save", Value: true, Usage: "Persist changed files to disk"},
		&cli.BoolFlag{Name: "discard", Usage: "Drop clean merge buffers afterwards"},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMergeFile(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	source, dest, err := twoArgs(cmd)
	if err != nil {
		return err
	}
	applyMergeFlags(cfg, cmd)
	opts := []internal.Option{internal.WithConfig(cfg)}
	if cmd.Bool("confirm") {
		opts = append(opts, internal.WithConfirm(promptConfirm))
	}
	return internal.RunMergeFile(ctx, source, dest, opts...)
}

// regionCommands exposes one subcommand per region format kind.
func regionCommands() []*cli.Command {
	table := merge.RegionCommands()
	cmds := make([]*cli.Command, 0, len(table))
	for _, rc := range table {
		kind := string(rc.Kind)
		cmds = append(cmds, &cli.Command{
			Name:      rc.Name,
			Usage:     rc.Usage,
			ArgsUsage: "SOURCE DESTINATION",
			Flags:     regionFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				source, dest, err := twoArgs(cmd)
				if err != nil {
					return err
				}
				applyMergeFlags(cfg, cmd)
				return internal.RunMergeRegion(ctx, source, dest,
					int(cmd.Int("start")), int(cmd.Int("end")), kind,
					internal.WithConfig(cfg))
			},
		})
	}
	return cmds
}

// runMergeRegion is the generic region action; the child commands bind the
// kind instead of taking a flag.
func runMergeRegion(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	source, dest, err := twoArgs(cmd)
	if err != nil {
		return err
	}
	applyMergeFlags(cfg, cmd)
	return internal.RunMergeRegion(ctx, source, dest,
		int(cmd.Int("start")), int(cmd.Int("end")), cmd.String("kind"),
		internal.WithConfig(cfg))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunSync(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "gebo",
		Usage:  "Knowledge consolidation service for identifier-addressed note vaults",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("GEBO_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP service",
				Action: serve,
			},
			{
				Name:      "merge",
				Usage:     "Merge one note into another, retargeting every backlink",
				ArgsUsage: "SOURCE DESTINATION",
				Flags:     mergeFlags(),
				Action:    runMergeFile,
			},
			{
				Name:      "region",
				Usage:     "Move a region of one note into another as a formatted block",
				ArgsUsage: "SOURCE DESTINATION",
				Flags: append(regionFlags(),
					&cli.StringFlag{Name: "kind", Usage: "Format kind for the moved block (default plain)"}),
				Action:   runMergeRegion,
				Commands: regionCommands(),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
			{
				Name:   "sync",
				Usage:  "Reconcile the SQLite index with the vault",
				Action: runSync,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
