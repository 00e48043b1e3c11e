package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/aleksaelezovic/trigoql/internal/backend"
	"github.com/aleksaelezovic/trigoql/internal/config"
	"github.com/aleksaelezovic/trigoql/internal/logging"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
)

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "trigo",
		Short:         "SPARQL queries over an RDF quad store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "path to config file")
	pf.String("backend", "", "storage backend (badger|sqlite|memory)")
	pf.String("path", "", "storage path")
	pf.String("log-level", "", "log level (debug|info|warn|error)")

	root.AddCommand(
		newQueryCmd(a),
		newLoadCmd(a),
		newReplCmd(a),
		newDemoCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the configuration, applies flag overrides and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("path") {
		cfg.Storage.Path, _ = flags.GetString("path")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return sperrors.Wrap(errors.Join(errs...), sperrors.CodeConfigValidateInvalidValue, "validate flags")
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) openStore() (backend.Store, error) {
	return backend.Open(a.cfg.Storage)
}

func (a *app) executorOptions() []executor.Option {
	return []executor.Option{
		executor.WithBatchUnify(a.cfg.Engine.BatchUnify),
		executor.WithEagerLimit(a.cfg.Engine.EagerLimit),
		executor.WithUnionDefaultGraph(a.cfg.Engine.UnionDefaultGraph),
		executor.WithDescribe(a.cfg.Engine.Describe),
	}
}
