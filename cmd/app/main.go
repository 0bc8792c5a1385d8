package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scribe/internal"
	"github.com/starford/scribe/internal/keywords"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
	pkgconfig "github.com/starford/scribe/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// openApp builds the pipeline for one-shot commands. stdout carries the
// command's output, so logs go to stderr.
func openApp(cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optimize(ctx context.Context, cmd *cli.Command) error {
	kws := cmd.Args().Slice()
	if len(kws) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	jobs := make([]pipeline.OptimizeInput, 0, len(kws))
	for _, kw := range kws {
		jobs = append(jobs, pipeline.OptimizeInput{
			Request: models.ContentRequest{
				Keyword:         kw,
				Language:        cmd.String("language"),
				Category:        cmd.String("category"),
				TargetWordCount: int(cmd.Int("words")),
				Authority:       cmd.Bool("authority"),
			},
			MinScore:    int(cmd.Int("min-score")),
			MaxAttempts: int(cmd.Int("max-attempts")),
			Source:      pipeline.SourceCLI,
		})
	}

	if len(jobs) == 1 {
		run, err := app.Service.Optimize(ctx, jobs[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, run)
	}
	items, err := app.Service.OptimizeBatch(ctx, jobs, int(cmd.Int("parallelism")))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, items)
}

func score(ctx context.Context, cmd *cli.Command) error {
	file := cmd.Args().First()
	if file == "" {
		return fmt.Errorf("a file to score is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	in := pipeline.ScoreInput{Keyword: cmd.String("keyword")}
	if strings.EqualFold(filepath.Ext(file), ".json") {
		var doc models.GeneratedDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", file, err)
		}
		in.Document = &doc
	} else {
		in.Markup = string(data)
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	res, err := app.Service.Score(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, res)
}

// readKeywords collects keywords from args and, with --file, one per line
// from a file ("-" for stdin).
func readKeywords(cmd *cli.Command) ([]string, error) {
	kws := append([]string{}, cmd.Args().Slice()...)
	src := cmd.String("file")
	if src == "" {
		return kws, nil
	}
	var r io.Reader = os.Stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			kws = append(kws, line)
		}
	}
	return kws, sc.Err()
}

func enrich(ctx context.Context, cmd *cli.Command) error {
	kws, err := readKeywords(cmd)
	if err != nil {
		return err
	}
	if len(kws) == 0 {
		return fmt.Errorf("no keywords given")
	}
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	out, err := app.Service.Enrich(ctx, pipeline.EnrichInput{
		Keywords: kws,
		Language: cmd.String("language"),
		Location: cmd.String("location"),
	})
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(os.Stdout, out)
	}
	return keywords.WriteTable(os.Stdout, out)
}

func listRuns(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck

	limit := int(cmd.Int("limit"))
	if q := cmd.String("query"); q != "" {
		runs, err := app.Service.SearchRuns(ctx, q, limit)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, runs)
	}
	runs, _, err := app.Service.ListRuns(ctx, runstore.ListOptions{
		Limit:        limit,
		Keyword:      cmd.String("keyword"),
		AcceptedOnly: cmd.Bool("accepted"),
	})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, runs)
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language code (default from config)"},
		&cli.StringFlag{Name: "category", Usage: "Topical category"},
		&cli.IntFlag{Name: "words", Usage: "Target body word count"},
		&cli.BoolFlag{Name: "authority", Usage: "Expert, authoritative tone"},
		&cli.IntFlag{Name: "min-score", Usage: "Acceptance threshold (default from config)"},
		&cli.IntFlag{Name: "max-attempts", Usage: "Attempt budget (default from config)"},
		&cli.IntFlag{Name: "parallelism", Usage: "Jobs in flight when several keywords are given", Value: 2},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "scribe",
		Usage:   "Generate, score and iteratively optimize long-form SEO content",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and, when enabled, the request inbox",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the pipeline as MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "optimize",
				Usage:     "Generate and score until accepted; prints the run as JSON",
				ArgsUsage: "KEYWORD [KEYWORD...]",
				Flags:     requestFlags(),
				Action:    optimize,
			},
			{
				Name:      "score",
				Usage:     "Score an HTML file, or a generated document saved as .json",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Target keyword", Required: true},
				},
				Action: score,
			},
			{
				Name:      "enrich",
				Usage:     "Look up keyword metrics and print them as a table",
				ArgsUsage: "[KEYWORD...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read keywords from a file, one per line (- for stdin)"},
					&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "Language code"},
					&cli.StringFlag{Name: "location", Usage: "Location name"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
				Action: enrich,
			},
			{
				Name:  "runs",
				Usage: "List or search stored optimization runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search text"},
					&cli.StringFlag{Name: "keyword", Usage: "Exact keyword filter"},
					&cli.BoolFlag{Name: "accepted", Usage: "Only accepted runs"},
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum runs"},
				},
				Action: listRuns,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
