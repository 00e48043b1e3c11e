package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/aleksaelezovic/trigoql/internal/config"
	"github.com/aleksaelezovic/trigoql/internal/logging"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

func newLoadCmd(a *app) *cobra.Command {
	var graph string

	cmd := &cobra.Command{
		Use:   "load FILE...",
		Short: "Load N-Quads or N-Triples files into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var g rdf.Term
			if graph != "" {
				g = rdf.NewNamedNode(graph)
			}
			n, err := loadFiles(cmd.Context(), s, args, g, a.cfg.Load)
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d quads from %d %s\n", n, len(args), plural(len(args), "file"))
			return err
		},
	}

	cmd.Flags().StringVarP(&graph, "graph", "g", "", "load default graph statements into this named graph")
	return cmd
}

type quadWriter interface {
	InsertQuadsBatch(quads []*rdf.Quad) error
}

type parsedFile struct {
	quads []*rdf.Quad
	err   error
}

// loadFiles parses the files in parallel on a worker pool, then writes
// their quads in file order, BatchSize quads per write. Files that fail to
// parse are reported together; the others are still loaded.
func loadFiles(ctx context.Context, w quadWriter, paths []string, graph rdf.Term, cfg config.LoadConfig) (int, error) {
	log := logging.Component("loader")

	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(v any) {
		log.WithField("panic", v).Error("parser panicked")
	}))
	if err != nil {
		return 0, sperrors.Wrap(err, sperrors.CodeCLILoadFailure, "create worker pool")
	}
	defer pool.Release()

	parsed := make([]parsedFile, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		parsed[i].err = errors.New("parser did not finish")
		if err := pool.Submit(func() {
			defer wg.Done()
			parsed[i].quads, parsed[i].err = parseFile(path, graph)
		}); err != nil {
			wg.Done()
			parsed[i].err = err
		}
	}
	wg.Wait()

	var (
		total int
		errs  []error
	)
	for i, p := range parsed {
		if p.err != nil {
			errs = append(errs, sperrors.Wrap(p.err, sperrors.CodeCLILoadFailure, "parse file",
				sperrors.Field("file", paths[i])))
			continue
		}
		for start := 0; start < len(p.quads); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			end := min(start+cfg.BatchSize, len(p.quads))
			if err := w.InsertQuadsBatch(p.quads[start:end]); err != nil {
				return total, sperrors.Wrap(err, sperrors.CodeCLILoadFailure, "insert quads",
					sperrors.Field("file", paths[i]))
			}
			total += end - start
		}
		log.WithField("file", paths[i]).WithField("quads", len(p.quads)).Info("file loaded")
	}
	return total, errors.Join(errs...)
}

// parseFile reads an N-Quads or N-Triples document. With graph set,
// default graph statements are moved into it.
func parseFile(path string, graph rdf.Term) ([]*rdf.Quad, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path given by the user
	if err != nil {
		return nil, err
	}
	quads, err := rdf.NewNQuadsParser(string(data)).Parse()
	if err != nil {
		return nil, err
	}
	if graph != nil {
		for _, q := range quads {
			if store.IsDefaultGraph(q.Graph) {
				q.Graph = graph
			}
		}
	}
	return quads, nil
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
