package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chhz0/dslproc/config"
	"github.com/chhz0/dslproc/core"
	"github.com/chhz0/dslproc/server"
	"github.com/chhz0/dslproc/types"
	"github.com/spf13/cobra"
)

const appName = "dslproc"

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagWorkers   int
	flagAddr      string
	flagResultID  string
	flagLimit     int
)

var errRunFailed = errors.New("one or more documents failed")

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Parse block DSL documents and dispatch items to registered handlers",
}

var runCmd = &cobra.Command{
	Use:   "run [file ...]",
	Short: "Process DSL files (the built-in demo document when none are given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := readDocuments(args)
		if err != nil {
			return err
		}
		factory, err := a.factory()
		if err != nil {
			return err
		}

		pool := core.NewWorkerPool(factory, cfg.Workers, a.logger)
		pool.Start()
		defer pool.Stop()

		outcomes, err := pool.Run(cmd.Context(), docs)
		if err != nil {
			return err
		}

		failed := false
		out := cmd.OutOrStdout()
		for _, o := range outcomes {
			if o.Err != nil {
				failed = true
				fmt.Fprintf(out, "%s: %v\n", o.Document.Name, o.Err)
				continue
			}
			r := o.Report
			fmt.Fprintf(out, "%s: run %s, %d items, %d ok, %d failed, %d skipped\n",
				o.Document.Name, r.RunID, len(r.Results),
				r.Count(types.StatusSuccess), r.Count(types.StatusFailed), r.Count(types.StatusSkipped))
			if r.Count(types.StatusFailed) > 0 {
				failed = true
			}
		}
		if failed {
			return errRunFailed
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /run over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.HTTPAddr = flagAddr
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		factory, err := a.factory()
		if err != nil {
			return err
		}
		srv, err := server.NewServer(server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			WorkerCount: cfg.Workers,
			Factory:     factory,
			Stats:       a.stats,
			Logger:      a.logger,
		})
		if err != nil {
			return err
		}
		return srv.Start(cmd.Context())
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results [run-id]",
	Short: "Show journaled results of a run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		var results []*types.Result
		switch {
		case flagResultID != "":
			r, err := a.store.GetResult(cmd.Context(), flagResultID)
			if err != nil {
				return err
			}
			results = append(results, r)
		case len(args) == 1:
			results, err = a.store.ListResults(cmd.Context(), args[0], flagLimit)
			if err != nil {
				return err
			}
		default:
			return errors.New("either a run id or --id is required")
		}

		for _, r := range results {
			printResult(cmd, r)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print results published by other instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.Publish.Enabled {
			return errors.New("publish is not enabled in config")
		}
		a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		ch, err := a.publisher.SubscribeResults(cmd.Context())
		if err != nil {
			return err
		}
		for r := range ch {
			printResult(cmd, r)
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, r *types.Result) {
	line := fmt.Sprintf("%s #%d %s %s %s", r.RunID, r.Seq, r.Type, r.Status, r.Options.Map())
	if r.Error != "" {
		line += " error=" + r.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

// 命令行参数覆盖配置文件
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	return cfg, cfg.Validate()
}

func readDocuments(paths []string) ([]core.Document, error) {
	if len(paths) == 0 {
		return []core.Document{{Name: "demo", Text: demoDocument}}, nil
	}
	docs := make([]core.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, core.Document{Name: filepath.Base(path), Text: string(data)})
	}
	return docs, nil
}

func main() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "text", "log format: text or json")
	pf.IntVarP(&flagWorkers, "workers", "w", 4, "documents processed concurrently")

	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides config)")
	resultsCmd.Flags().StringVar(&flagResultID, "id", "", "show a single result by id")
	resultsCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum results to list (0 = all)")

	rootCmd.AddCommand(runCmd, serveCmd, resultsCmd, watchCmd)

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
