package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aleksaelezovic/trigoql/internal/backend"
	"github.com/aleksaelezovic/trigoql/internal/config"
	"github.com/aleksaelezovic/trigoql/internal/logging"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/results"
)

const historyFile = ".trigo_history"

const shellHelp = `Queries may span several lines and end with ';'.
Commands:
  .format NAME     output format (table, json, xml, csv, tsv, ntriples)
  .load FILE...    load N-Quads or N-Triples files
  .count           number of quads in the store
  .help            this text
  .quit            leave the shell
`

func newReplCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive query shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := results.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sh := newShell(s, a.executorOptions(), a.cfg.Load, f, cmd.OutOrStdout())
			return sh.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&format, "format", string(results.FormatTable), "initial output format")
	return cmd
}

// shell executes statements typed at the prompt. It owns no terminal
// state, so it can be driven line by line.
type shell struct {
	store  backend.Store
	exec   *executor.Executor
	load   config.LoadConfig
	format results.Format
	out    io.Writer
	log    *logrus.Entry

	pending strings.Builder
}

func newShell(s backend.Store, opts []executor.Option, load config.LoadConfig, f results.Format, out io.Writer) *shell {
	return &shell{
		store:  s,
		exec:   executor.NewExecutor(s, opts...),
		load:   load,
		format: f,
		out:    out,
		log:    logging.Component("repl"),
	}
}

func (sh *shell) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
		if f, err := os.Open(history); err == nil { // #nosec G304 - fixed name under the home directory
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if history == "" {
			return
		}
		f, err := os.Create(history) // #nosec G304 - fixed name under the home directory
		if err != nil {
			sh.log.WithError(err).Warn("could not save history")
			return
		}
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}()

	fmt.Fprintln(sh.out, "trigo shell. End queries with ';', type .help for commands.")
	for {
		prompt := "trigo> "
		if sh.pending.Len() > 0 {
			prompt = "  ...> "
		}
		input, err := line.Prompt(prompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			sh.pending.Reset()
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(sh.out)
			return nil
		case err != nil:
			return err
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if sh.handle(ctx, input) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle processes one input line and reports whether the shell should
// exit.
func (sh *shell) handle(ctx context.Context, input string) bool {
	trimmed := strings.TrimSpace(input)
	if sh.pending.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return sh.command(ctx, strings.Fields(trimmed))
	}

	sh.pending.WriteString(input)
	sh.pending.WriteByte('\n')
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}

	stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sh.pending.String()), ";"))
	sh.pending.Reset()
	if stmt != "" {
		sh.query(ctx, stmt)
	}
	return false
}

func (sh *shell) query(ctx context.Context, stmt string) {
	res, err := sh.exec.Query(ctx, stmt)
	if err == nil {
		err = results.Write(sh.out, res, sh.format)
	}
	if err != nil {
		fmt.Fprintln(sh.out, "error:", err)
	}
}

func (sh *shell) command(ctx context.Context, fields []string) bool {
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprint(sh.out, shellHelp)
	case ".format":
		if len(fields) != 2 {
			fmt.Fprintf(sh.out, "format: %s\n", sh.format)
			break
		}
		f, err := results.ParseFormat(fields[1])
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
			break
		}
		sh.format = f
	case ".load":
		if len(fields) < 2 {
			fmt.Fprintln(sh.out, "usage: .load FILE...")
			break
		}
		n, err := loadFiles(ctx, sh.store, fields[1:], nil, sh.load)
		fmt.Fprintf(sh.out, "loaded %d quads\n", n)
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
		}
	case ".count":
		n, err := sh.store.Count()
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
			break
		}
		fmt.Fprintf(sh.out, "%d quads\n", n)
	default:
		fmt.Fprintf(sh.out, "unknown command %s, type .help\n", fields[0])
	}
	return false
}
