package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/fsindex/internal/config"
	"github.com/standardbeagle/fsindex/internal/debug"
	"github.com/standardbeagle/fsindex/internal/fsindex"
	"github.com/standardbeagle/fsindex/internal/version"
	"github.com/standardbeagle/fsindex/pkg/pathutil"
)

var (
	// Version is reported to the CLI framework; kept as a package var so it
	// matches the rest of the module's version-reporting convention.
	Version = version.Version

	manager = fsindex.NewManager()
)

// loadConfigWithOverrides loads the on-disk config and applies CLI flag
// overrides, mirroring the include/exclude/root override precedence.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".fsindex.kdl" {
		configPath = filepath.Join(rootFlag, ".fsindex.kdl")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}

	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:                   "fsindex",
		Usage:                  "Concurrent full-text file indexing and search",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".fsindex.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Directory to index (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include only files matching glob patterns",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show debug tracing",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(os.Stderr)
			}
			return nil
		},
		Commands: []*cli.Command{
			indexCommand(),
			cancelCommand(),
			progressCommand(),
			searchCommand(),
			statsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// indexCommand implements start_indexing (spec.md §6). The directory to
// index is given as a positional argument in place of a GUI directory
// picker, which has no CLI equivalent.
func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Aliases:   []string{"start_indexing"},
		Usage:     "Begin indexing a directory",
		ArgsUsage: "<directory>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("a directory argument is required", 1)
			}
			root, err := filepath.Abs(c.Args().First())
			if err != nil {
				return err
			}

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			cfg.Project.Root = root
			indexPath := cfg.ResolveIndexPath()

			sess, err := manager.Start(cfg, root, indexPath)
			if err != nil {
				return err
			}

			return printJSON(map[string]string{
				"status":     "started",
				"index_path": indexPath,
				"root":       root,
				"session":    fmt.Sprintf("%p", sess),
			})
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Aliases:   []string{"cancel_indexing"},
		Usage:     "Cancel an in-progress indexing session",
		ArgsUsage: "<index-path>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("an index path argument is required", 1)
			}
			sess, ok := manager.Lookup(c.Args().First())
			if !ok {
				return cli.Exit("no session found for that index path", 1)
			}
			sess.Cancel()
			return printJSON(map[string]string{"status": "cancelling"})
		},
	}
}

func progressCommand() *cli.Command {
	return &cli.Command{
		Name:      "progress",
		Aliases:   []string{"get_indexing_progress"},
		Usage:     "Report the current indexing progress",
		ArgsUsage: "<index-path>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("an index path argument is required", 1)
			}
			sess, ok := manager.Lookup(c.Args().First())
			if !ok {
				return cli.Exit("no session found for that index path", 1)
			}
			return printJSON(sess.Progress())
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"search_files"},
		Usage:     "Search the index",
		ArgsUsage: "<index-path> <query>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("an index path and query are required", 1)
			}
			indexPath := c.Args().Get(0)
			query := c.Args().Get(1)

			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			w, err := fsindex.OpenWriter(cfg, indexPath, nil)
			if err != nil {
				return err
			}
			defer w.Close()

			hits, err := fsindex.Search(w.Reader(), query)
			if err != nil {
				return err
			}
			// Hits carry the scanner's absolute paths; convert to
			// root-relative for display when the root is known, matching
			// the indexing pipeline's internal-absolute/external-relative
			// split.
			if cfg.Project.Root != "" {
				for i := range hits {
					hits[i].Path = pathutil.ToRelative(hits[i].Path, cfg.Project.Root)
				}
			}
			return printJSON(hits)
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Aliases:   []string{"verify_index", "get_stats"},
		Usage:     "Report index document count and age",
		ArgsUsage: "<index-path>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("an index path argument is required", 1)
			}
			indexPath := c.Args().First()

			info, err := os.Stat(indexPath)
			if err != nil {
				return fsindex.NewError(fsindex.ErrNoIndex, "stats", err).WithPath(indexPath)
			}

			cfg := config.Default()
			w, err := fsindex.OpenWriter(cfg, indexPath, nil)
			if err != nil {
				return err
			}
			defer w.Close()

			count, err := w.DocCount()
			if err != nil {
				return err
			}

			return printJSON(map[string]interface{}{
				"index_path":   indexPath,
				"document_count": count,
				"modified":     info.ModTime().Format(time.RFC3339),
			})
		},
	}
}
