package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/report"
	"github.com/nao1215/onioncrawl/internal/store"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize crawl results",
		Long: `Report reads crawl results and prints a summary: pages crawled, keyword hits,
denylisted pages and screenshots.

By default the JSONL results file is read. With --session or --latest the
results of one crawl are read from the session index instead.

Examples:
  # Summarize the default results file
  onioncrawl report

  # List recorded crawl sessions
  onioncrawl report --list

  # Markdown report of the most recent session
  onioncrawl report --latest --markdown -o report.md

  # Full JSON report of one session
  onioncrawl report --session 6f1c... --json`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file path")
	cmd.Flags().StringP("results", "r", "", "JSONL results file to read (default from config)")
	cmd.Flags().String("db-dir", "", "Session index directory (default from config)")
	cmd.Flags().StringP("session", "s", "", "Report the results of this session from the index")
	cmd.Flags().Bool("latest", false, "Report the most recent session from the index")
	cmd.Flags().BoolP("list", "l", false, "List recorded crawl sessions")
	cmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the report as Markdown")
	cmd.Flags().BoolP("pages", "p", false, "Include every page in the text report")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

// reportOptions holds the parsed report flags.
type reportOptions struct {
	resultsFile string
	dbDir       string
	sessionID   string
	latest      bool
	list        bool
	json        bool
	markdown    bool
	pages       bool
	output      string
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := reportOptions{resultsFile: cfg.ResultsFile, dbDir: cfg.DBDir}
	f := cmd.Flags()
	err = errors.Join(
		setIfChanged(cmd, "results", f.GetString, &opts.resultsFile),
		setIfChanged(cmd, "db-dir", f.GetString, &opts.dbDir),
		setIfChanged(cmd, "session", f.GetString, &opts.sessionID),
		setIfChanged(cmd, "latest", f.GetBool, &opts.latest),
		setIfChanged(cmd, "list", f.GetBool, &opts.list),
		setIfChanged(cmd, "json", f.GetBool, &opts.json),
		setIfChanged(cmd, "markdown", f.GetBool, &opts.markdown),
		setIfChanged(cmd, "pages", f.GetBool, &opts.pages),
		setIfChanged(cmd, "output", f.GetString, &opts.output),
	)
	if err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return errors.New("--json and --markdown cannot be used together")
	}
	if opts.sessionID != "" && opts.latest {
		return errors.New("--session and --latest cannot be used together")
	}

	return runReport(cmd.Context(), opts, cmd.OutOrStdout())
}

// runReport loads the selected results and writes the report.
func runReport(ctx context.Context, opts reportOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.list {
		return listSessions(ctx, opts.dbDir, stdout)
	}

	var (
		results []model.Result
		session *model.Session
		err     error
	)
	if opts.sessionID != "" || opts.latest {
		results, session, err = loadSessionResults(ctx, opts)
	} else {
		results, err = store.ReadJSONL(opts.resultsFile)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("results file %s not found (run 'onioncrawl crawl' first): %w", opts.resultsFile, err)
		}
	}
	if err != nil {
		return err
	}

	output := stdout
	if opts.output != "" {
		dir := filepath.Dir(opts.output)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Reports list crawled URLs; keep them private to the owner.
		f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	summary := report.NewSummary(results, session)
	var writer report.Writer
	switch {
	case opts.json:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case opts.markdown:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(opts.pages))
	}
	_, err = writer.Write(summary)
	return err
}

// loadSessionResults reads one session and its results from the index.
func loadSessionResults(ctx context.Context, opts reportOptions) ([]model.Result, *model.Session, error) {
	index, err := openIndexForRead(opts.dbDir)
	if err != nil {
		return nil, nil, err
	}
	defer index.Close()

	var session *model.Session
	if opts.latest {
		session, err = index.LatestSession(ctx)
	} else {
		session, err = index.Session(ctx, opts.sessionID)
	}
	if err != nil {
		return nil, nil, err
	}

	results, err := index.SessionResults(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return results, session, nil
}

// listSessions prints the sessions recorded in the index, newest first.
func listSessions(ctx context.Context, dbDir string, out io.Writer) error {
	index, err := openIndexForRead(dbDir)
	if err != nil {
		return err
	}
	defer index.Close()

	sessions, err := index.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No crawl sessions recorded.")
		fmt.Fprintln(out, "\nUse 'onioncrawl crawl <seed-url>' to start one.")
		return nil
	}

	fmt.Fprintf(out, "Crawl sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5s  %s\n", "ID", "Started", "Status", "Pages", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %5d  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Status,
			s.Results,
			s.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'onioncrawl report --session <id>' to see one session.")
	return nil
}

// openIndexForRead opens an existing session index without creating one.
func openIndexForRead(dbDir string) (*store.Index, error) {
	if dbDir == "" {
		return nil, errors.New("session index is disabled (set db_dir or --db-dir)")
	}
	opts := store.DefaultIndexOptions()
	opts.CreateIfNotExists = false
	index, err := store.OpenIndex(dbDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session index: %w", err)
	}
	return index, nil
}
