package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/yourorg/testgen/internal/config"
	"github.com/yourorg/testgen/internal/generator"
	"github.com/yourorg/testgen/internal/metrics"
	"github.com/yourorg/testgen/internal/server"
	"github.com/yourorg/testgen/internal/store"
	"github.com/yourorg/testgen/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	cfgPath string
	debug   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "testgen",
		Short:         "Generate pytest suites for APIs from requirements and OpenAPI specs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug output")

	root.AddCommand(newInitCmd(g))
	root.AddCommand(newStageCmd(g, types.StageGenerate, "Generate scenarios and tests for each API"))
	root.AddCommand(newStageCmd(g, types.StageScenarios, "Generate scenarios.txt for each API"))
	root.AddCommand(newStageCmd(g, types.StageTests, "Generate tests from existing scenarios.txt"))
	root.AddCommand(newWatchCmd(g))
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newRunsCmd(g))

	return root
}

func newLogger(w io.Writer, level string, debug bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session bundles what the generating commands share.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.SQLiteStore
	gen    *generator.Generator
	reg    *prometheus.Registry
}

func openSession(cmd *cobra.Command, g *globalFlags) (*session, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateGenerate(); err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, g.debug)
	st, err := store.NewSQLiteStore(cfg.Paths.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend := generator.NewOpenAIBackend(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, logger)
	gen := generator.New(cfg, backend)
	gen.Store = st
	gen.Metrics = metrics.New(reg)
	gen.Out = cmd.OutOrStdout()
	gen.Logger = logger
	gen.OnProgress = func(stage string) { logger.Debug("progress", "stage", stage) }

	return &session{cfg: cfg, logger: logger, store: st, gen: gen, reg: reg}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func newInitCmd(g *globalFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default config, database and conftest.py",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfgFile := g.cfgPath
			if cfgFile == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				cfgFile = p
			}
			if err := os.MkdirAll(filepath.Dir(cfgFile), 0o755); err != nil {
				return err
			}
			if err := writeIfAbsent(out, cfgFile, defaultConfigContent); err != nil {
				return err
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := writeIfAbsent(out, filepath.Join(dir, "conftest.py"), conftestContent(cfg.Pipeline.Fixture)); err != nil {
				return err
			}
			for _, d := range []string{cfg.Paths.APIsDir, cfg.Paths.TestsDir} {
				if !filepath.IsAbs(d) {
					d = filepath.Join(dir, d)
				}
				if err := os.MkdirAll(d, 0o755); err != nil {
					return err
				}
			}

			s, err := store.NewSQLiteStore(cfg.Paths.DB)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(out, "database ready", cfg.Paths.DB)
			if cfg.LLM.APIKey == "" {
				fmt.Fprintln(out, "please set llm.api_key in", cfgFile, "or OPENAI_API_KEY")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "project directory for conftest.py, apis and tests")
	return cmd
}

func writeIfAbsent(out io.Writer, path, content string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		fmt.Fprintln(out, "exists", path)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	fmt.Fprintln(out, "created", path)
	return nil
}

func newStageCmd(g *globalFlags, stage, short string) *cobra.Command {
	var surface string
	var noCache, resume bool
	cmd := &cobra.Command{
		Use:   stage,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			opts := generator.Options{Resume: resume, NoCache: noCache}

			if surface != "" {
				sf, err := generator.Lookup(s.cfg.Paths.APIsDir, surface)
				if err != nil {
					return err
				}
				s.gen.RunSurface(ctx, sf, stage, opts)
				return nil
			}
			results, err := s.gen.RunAll(ctx, stage, opts)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			s.logger.Info("done", "stage", stage, "surfaces", len(results), "failed", failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&surface, "surface", "", "only process this API directory")
	if stage != types.StageScenarios {
		cmd.Flags().BoolVar(&noCache, "no-cache", false, "discard cached model responses first")
		cmd.Flags().BoolVar(&resume, "resume", false, "reuse cached responses for scenarios that succeeded")
	}
	return cmd
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var initial bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate an API's tests whenever its inputs change",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if initial {
				if _, err := s.gen.RunAll(ctx, types.StageGenerate, generator.Options{Resume: true}); err != nil {
					return err
				}
			}
			w, err := generator.NewWatcher(s.cfg.Paths.APIsDir, s.cfg.Paths.Include, s.cfg.DebounceDelay(), s.logger)
			if err != nil {
				return err
			}
			defer w.Stop()
			if err := w.Start(ctx); err != nil {
				return err
			}
			err = s.gen.Watch(ctx, w, generator.Options{Resume: true})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&initial, "initial", false, "run every API once before watching")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g)
			if err != nil {
				return err
			}
			defer s.Close()
			if cmd.Flags().Changed("host") {
				s.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				s.cfg.Server.Port = port
			}
			srv, err := server.New(s.cfg, s.store, s.gen, s.reg)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
			s.logger.Info("listening", "addr", addr)
			return srv.ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 3000, "server port")
	return cmd
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "Inspect generation history"}
	cmd.AddCommand(newRunsListCmd(g), newRunsShowCmd(g), newRunsDeleteCmd(g))
	return cmd
}

func openStore(g *globalFlags) (*store.SQLiteStore, error) {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Paths.DB)
}

func newRunsListCmd(g *globalFlags) *cobra.Command {
	var surface string
	cmd := &cobra.Command{Use: "list", Short: "List runs", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(g)
		if err != nil {
			return err
		}
		defer st.Close()
		runs, err := st.ListRuns(surface)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"ID", "Surface", "Stage", "Status", "Scenarios", "Failed", "Created"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetAutoWrapText(false)
		for _, r := range runs {
			table.Append([]string{
				r.ID, r.Surface, r.Stage, r.Status,
				strconv.Itoa(r.ScenarioCount), strconv.Itoa(r.FailedCount),
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	}}
	cmd.Flags().StringVar(&surface, "surface", "", "only list runs for this API")
	return cmd
}

func newRunsShowCmd(g *globalFlags) *cobra.Command {
	var runID string
	cmd := &cobra.Command{Use: "show", Short: "Show run details", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(g)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.GetRun(runID)
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		results, err := st.GetResults(runID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run:       %s\nsurface:   %s\nstage:     %s\nmodel:     %s\nstatus:    %s\noutput:    %s\n",
			run.ID, run.Surface, run.Stage, run.Model, run.Status, run.OutputPath)
		if run.ErrorMsg != "" {
			fmt.Fprintf(out, "error:     %s\n", run.ErrorMsg)
		}
		for _, r := range results {
			line := fmt.Sprintf("%3d  %-6s  %s", r.Seq, r.Status, r.Scenario)
			if r.ErrorMsg != "" {
				line += "  (" + r.ErrorMsg + ")"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func newRunsDeleteCmd(g *globalFlags) *cobra.Command {
	var runID string
	cmd := &cobra.Command{Use: "delete", Short: "Delete a run", RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(g)
		if err != nil {
			return err
		}
		defer st.Close()
		if _, err := st.GetRun(runID); err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		if err := st.DeleteRun(runID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", runID)
		return nil
	}}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
