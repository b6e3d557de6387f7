package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/landscape/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "landscape",
		Short:         "Competitive-landscape analyzer",
		Long:          `Searches the web for products solving a problem, rates them, tracks them across runs, and summarizes the competitive threat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (YAML); LANDSCAPE_* env vars override it")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or text")
	pf.String("store", "memory://", "competitor store DSN (memory://, postgres://, sqlite://, json://)")
	pf.String("provider", "serper", "search provider: serper or duckduckgo")
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("store.dsn", pf.Lookup("store"))
	_ = a.v.BindPFlag("search.provider", pf.Lookup("provider"))

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newAnalyzeCmd(a))
	root.AddCommand(newRulesCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Logger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
