// Command chat runs assistant turns from the terminal against local
// reference files and a SQLite memory store.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"campus-assistant/internal/app"
	"campus-assistant/internal/domain"
	"campus-assistant/internal/reference"
	"campus-assistant/internal/repository"
	"campus-assistant/internal/session"
	"campus-assistant/internal/usecase"
	"campus-assistant/internal/worker"
)

type options struct {
	dataDir   string
	dbPath    string
	user      string
	session   string
	student   string
	verbose   bool
	noHistory bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Ask the campus assistant questions from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.dataDir, "data-dir", "./data", "directory holding buildings, schedules, instructors, faqs and nlu_rules files")
	f.StringVar(&o.dbPath, "db", "./data/memory.db", "SQLite memory database")
	f.StringVar(&o.user, "user", "", "user id (defaults to the default student id)")
	f.StringVar(&o.session, "session", "", "session id (defaults to the user id)")
	f.StringVar(&o.student, "student", "student123", "default student id for schedule lookups")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "print session attributes after every turn")
	f.BoolVar(&o.noHistory, "no-history", false, "do not record or read turn history")
	return cmd
}

func run(ctx context.Context, o options, in io.Reader, out io.Writer) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	router, closeStore, err := newRouter(o, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	interactive := isTerminal(in)
	if interactive {
		fmt.Fprintln(out, "Ask about building hours, locations, classes or FAQs. Ctrl-D to quit.")
	}
	sc := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		resp := router.Route(ctx, domain.TurnRequest{
			Utterance: domain.Utterance{Transcript: line},
			UserID:    o.user,
			SessionID: o.session,
		})
		fmt.Fprintln(out, resp.Message)
		if o.verbose {
			printAttrs(out, resp)
		}
	}
	if interactive {
		fmt.Fprintln(out)
	}
	return sc.Err()
}

// isTerminal reports whether in is a terminal; piped input gets no prompt.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRouter(o options, logger *slog.Logger) (*usecase.Router, func(), error) {
	fetcher, err := reference.NewDirFetcher(o.dataDir)
	if err != nil {
		return nil, nil, err
	}
	ds, err := reference.NewDataset(fetcher, reference.Keys{
		Buildings:   datasetKey(o.dataDir, "buildings"),
		Schedules:   datasetKey(o.dataDir, "schedules"),
		Instructors: datasetKey(o.dataDir, "instructors"),
		FAQs:        datasetKey(o.dataDir, "faqs"),
		Rules:       datasetKey(o.dataDir, "nlu_rules"),
	})
	if err != nil {
		return nil, nil, err
	}
	ref := app.FromDataset(ds)

	local, err := worker.NewLocal(ref.Catalog, ref.Lookup, worker.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.NewSQLite(o.dbPath, 0)
	if err != nil {
		return nil, nil, err
	}
	router, err := usecase.NewRouter(ref.Catalog, local, session.NewMemory(store, !o.noHistory, logger), usecase.Options{
		SchedulesEnabled:   true,
		InstructorsEnabled: true,
		DefaultStudentID:   o.student,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return router, func() { _ = store.Close() }, nil
}

// datasetKey picks the first existing <name>.json, .yaml or .yml file.
// A missing file yields the .json key and fails on first use.
func datasetKey(dir, name string) string {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if _, err := os.Stat(filepath.Join(dir, name+ext)); err == nil {
			return name + ext
		} else if !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	return name + ".json"
}

func printAttrs(out io.Writer, resp domain.TurnResponse) {
	fmt.Fprintf(out, "  [%s %s]\n", resp.Action, resp.Intent)
	for _, k := range slices.Sorted(maps.Keys(resp.Attributes)) {
		fmt.Fprintf(out, "  %s=%s\n", k, resp.Attributes[k])
	}
}
