package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/results"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		file      string
		format    string
		limitHint bool
	)

	cmd := &cobra.Command{
		Use:   "query [QUERY]",
		Short: "Run a SPARQL query",
		Long:  "Run a SPARQL query given as an argument, read from a file with -f, or from stdin with -f -.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := queryText(args, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			f, err := results.ParseFormat(format)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			opts := a.executorOptions()
			if cmd.Flags().Changed("limit-hint") {
				opts = append(opts, executor.WithEagerLimit(limitHint))
			}
			res, err := executor.NewExecutor(s, opts...).Query(cmd.Context(), text)
			if err != nil {
				return err
			}
			return results.Write(cmd.OutOrStdout(), res, f)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a file (- for stdin)")
	cmd.Flags().StringVar(&format, "format", string(results.FormatTable), "output format (table|json|xml|csv|tsv|ntriples)")
	cmd.Flags().BoolVar(&limitHint, "limit-hint", true, "stop evaluation once LIMIT answers are found")
	return cmd
}

func queryText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", sperrors.New(sperrors.CodeCLIInputInvalid, "give the query as an argument or with -f, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", sperrors.Wrap(err, sperrors.CodeCLIInputInvalid, "read query from stdin")
		}
		return string(data), nil
	case file != "":
		data, err := os.ReadFile(file) // #nosec G304 - path given by the user
		if err != nil {
			return "", sperrors.Wrap(err, sperrors.CodeCLIInputInvalid, "read query file", sperrors.Field("file", file))
		}
		return string(data), nil
	}
	return "", sperrors.New(sperrors.CodeCLIInputInvalid, "no query given")
}
