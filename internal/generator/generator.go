package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yourorg/testgen/internal/config"
	"github.com/yourorg/testgen/internal/filter"
	"github.com/yourorg/testgen/internal/metrics"
	"github.com/yourorg/testgen/internal/pipeline"
	"github.com/yourorg/testgen/internal/store"
	"github.com/yourorg/testgen/pkg/types"
)

// ProgressFunc reports generation progress.
type ProgressFunc func(stage string)

// Options controls response cache use for one run.
type Options struct {
	// Resume reuses cached ok responses instead of calling the model.
	Resume bool
	// NoCache clears the surface's cached responses first.
	NoCache bool
}

// Generator runs the scenario and test stages for API surfaces. Store,
// Metrics, Logger and OnProgress are optional. Operator markers go to Out.
type Generator struct {
	Config     *config.Config
	Backend    Backend
	Store      store.Store
	Metrics    *metrics.Metrics
	Out        io.Writer
	Logger     *slog.Logger
	OnProgress ProgressFunc

	pipe *pipeline.Pipeline
}

// Result is the outcome of running one surface.
type Result struct {
	Surface   string
	Run       *types.Run
	Scenarios []string
	Outcomes  []pipeline.Outcome
	Path      string
	Err       error
}

// New builds a generator. A nil cfg gets defaults.
func New(cfg *config.Config, backend Backend) *Generator {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	return &Generator{
		Config:  cfg,
		Backend: backend,
		Out:     io.Discard,
		pipe:    pipeline.New(PipelineOptions(cfg.Pipeline)),
	}
}

// PipelineOptions maps the pipeline config section onto pipeline options.
func PipelineOptions(c config.PipelineConfig) pipeline.Options {
	return pipeline.Options{
		Fixture:       c.Fixture,
		BaseConstant:  c.BaseConstant,
		Resolver:      c.Resolver,
		CommentMarker: c.CommentMarker,
		Policy:        pipeline.Policy(c.Policy),
	}
}

// RunAll discovers surfaces under the configured apis dir and runs stage on
// each in name order. A failing surface does not stop the others; only a
// discovery error is returned.
func (g *Generator) RunAll(ctx context.Context, stage string, opts Options) ([]*Result, error) {
	surfaces, err := Discover(g.Config.Paths.APIsDir, g.Config.Paths.Include)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(surfaces))
	for _, s := range surfaces {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, g.RunSurface(ctx, s, stage, opts))
	}
	return results, nil
}

// RunSurface runs one stage (scenarios, tests or generate) for s and
// records it as a run. Failures are reported on Out and in Result.Err.
func (g *Generator) RunSurface(ctx context.Context, s Surface, stage string, opts Options) *Result {
	res := &Result{Surface: s.Name}
	run := g.startRun(s.Name, stage)
	res.Run = run

	var err error
	switch stage {
	case types.StageScenarios:
		res.Scenarios, err = g.GenerateScenarios(ctx, s)
	case types.StageTests:
		res.Scenarios, err = LoadScenarios(s)
		if err == nil {
			res.Outcomes, res.Path, err = g.GenerateTests(ctx, s, res.Scenarios, opts)
		}
	case types.StageGenerate:
		res.Scenarios, err = g.GenerateScenarios(ctx, s)
		if err == nil {
			res.Outcomes, res.Path, err = g.GenerateTests(ctx, s, res.Scenarios, opts)
		}
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}
	res.Err = err

	run.ScenarioCount = len(res.Scenarios)
	run.OutputPath = res.Path
	switch {
	case errors.Is(err, ErrMissingInput):
		run.Status = types.StatusSkipped
		run.ErrorMsg = err.Error()
		fmt.Fprintf(g.out(), "❌ %v\n", err)
	case err != nil:
		run.Status = types.StatusFailed
		run.ErrorMsg = err.Error()
		fmt.Fprintln(g.out(), failureMarker(s.Name, stage, err))
	default:
		run.Status = types.StatusOK
		if stage == types.StageScenarios {
			run.OutputPath = s.ScenariosPath()
		}
		for _, o := range res.Outcomes {
			if !o.OK() {
				run.FailedCount++
			}
		}
		if run.FailedCount > 0 {
			run.Status = types.StatusPartial
			if run.FailedCount == len(res.Outcomes) {
				run.Status = types.StatusFailed
			}
		}
	}
	g.finishRun(run, res.Outcomes)
	g.logger().Info("surface finished", "surface", s.Name, "stage", stage, "status", run.Status,
		"scenarios", run.ScenarioCount, "failed", run.FailedCount, "run_id", run.ID)
	return res
}

// GenerateScenarios asks the model for scenarios from the surface's
// requirements and OpenAPI document and writes them to scenarios.txt.
func (g *Generator) GenerateScenarios(ctx context.Context, s Surface) ([]string, error) {
	requirements, err := readInput(s.RequirementsPath())
	if err != nil {
		return nil, err
	}
	swagger, err := readInput(s.SwaggerPath())
	if err != nil {
		return nil, err
	}
	swagger = filter.SanitizeSpec(swagger, g.Config.Sanitize)

	report(g.OnProgress, fmt.Sprintf("%s: generating scenarios", s.Name))
	raw, err := g.complete(ctx, types.StageScenarios, Prompt{
		System:      scenarioSystemPrompt,
		User:        ScenarioPrompt(requirements, swagger),
		Temperature: g.Config.LLM.ScenarioTemperature,
		MaxTokens:   g.Config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, &BackendError{Stage: types.StageScenarios, Err: err}
	}
	scenarios := filter.Scenarios(raw)
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNoScenarios)
	}
	if g.Metrics != nil {
		g.Metrics.Scenarios.Add(float64(len(scenarios)))
	}
	path := s.ScenariosPath()
	if err := pipeline.WriteFile(path, []byte(strings.Join(scenarios, "\n")+"\n")); err != nil {
		return nil, fmt.Errorf("write scenarios: %w", err)
	}
	fmt.Fprintf(g.out(), "✅ Scenarios generated: %s\n", path)
	return scenarios, nil
}

// LoadScenarios reads a previously generated scenarios.txt.
func LoadScenarios(s Surface) ([]string, error) {
	text, err := readInput(s.ScenariosPath())
	if err != nil {
		return nil, err
	}
	scenarios := filter.Scenarios(text)
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrNoScenarios)
	}
	return scenarios, nil
}

// GenerateTests produces one test block per scenario and writes the
// assembled module. A model failure for one scenario becomes a failed
// outcome and the remaining scenarios still run.
func (g *Generator) GenerateTests(ctx context.Context, s Surface, scenarios []string, opts Options) ([]pipeline.Outcome, string, error) {
	swagger, err := readInput(s.SwaggerPath())
	if err != nil {
		return nil, "", err
	}
	swagger = filter.SanitizeSpec(swagger, g.Config.Sanitize)
	popts := g.pipe.Options()
	model := g.Config.LLM.Model

	if opts.NoCache && g.Store != nil {
		if err := g.Store.ClearResponses(s.Name); err != nil {
			return nil, "", err
		}
	}
	cached := map[string]types.ResponseCache{}
	if opts.Resume && g.Store != nil {
		entries, err := g.Store.GetResponses(s.Name, model)
		if err != nil {
			return nil, "", err
		}
		for _, c := range entries {
			cached[c.Scenario] = c
		}
	}

	outcomes := make([]pipeline.Outcome, 0, len(scenarios))
	for i, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if c, ok := cached[scenario]; ok && c.Status == types.StatusOK {
			report(g.OnProgress, fmt.Sprintf("%s: scenario %d/%d: using cache", s.Name, i+1, len(scenarios)))
			outcomes = append(outcomes, pipeline.Succeeded(g.pipe.Transform(scenario, c.RawOutput)))
			g.countBlock("cached")
			continue
		}

		report(g.OnProgress, fmt.Sprintf("%s: scenario %d/%d: calling model", s.Name, i+1, len(scenarios)))
		raw, err := g.complete(ctx, types.StageTests, Prompt{
			System:      testSystemPrompt,
			User:        TestPrompt(swagger, scenario, popts),
			Temperature: g.Config.LLM.TestTemperature,
			MaxTokens:   g.Config.LLM.MaxTokens,
		})
		entry := &types.ResponseCache{Surface: s.Name, Scenario: scenario, Model: model}
		if err != nil {
			fmt.Fprintf(g.out(), "❌ Error generating test for scenario: %s\n  ➤ %v\n", scenario, err)
			outcomes = append(outcomes, pipeline.Failed(scenario, err))
			entry.Status = types.StatusFailed
			entry.ErrorMsg = err.Error()
			g.countBlock("failed")
		} else {
			outcomes = append(outcomes, pipeline.Succeeded(g.pipe.Transform(scenario, raw)))
			entry.Status = types.StatusOK
			entry.RawOutput = raw
			entry.TokensUsed = EstimateTokens(raw)
			g.countBlock("ok")
		}
		if g.Store != nil {
			if err := g.Store.SaveResponse(entry); err != nil {
				g.logger().Warn("save response", "surface", s.Name, "scenario", scenario, "err", err)
			}
		}
	}

	doc := pipeline.Document{
		Preamble:      pipeline.DefaultPreamble(pipeline.PreambleFor(popts, g.Config.Pipeline.DefaultBaseURL)),
		Outcomes:      outcomes,
		CommentMarker: popts.CommentMarker,
	}
	path := s.TestPath(g.Config.Paths.TestsDir)
	report(g.OnProgress, fmt.Sprintf("%s: writing %s", s.Name, path))
	if err := pipeline.WriteFile(path, doc.Render()); err != nil {
		return outcomes, "", fmt.Errorf("write tests: %w", err)
	}
	fmt.Fprintf(g.out(), "✅ Tests written to: %s\n", path)
	return outcomes, path, nil
}

func failureMarker(surface, stage string, err error) string {
	what, cause := types.StageTests, err
	var be *BackendError
	switch {
	case errors.As(err, &be):
		what, cause = be.Stage, be.Err
	case errors.Is(err, ErrNoScenarios), stage == types.StageScenarios:
		what = types.StageScenarios
	}
	return fmt.Sprintf("❌ Error generating %s for %s: %v", what, surface, cause)
}

func (g *Generator) complete(ctx context.Context, stage string, p Prompt) (string, error) {
	if g.Backend == nil {
		return "", errors.New("backend is nil")
	}
	start := time.Now()
	out, err := g.Backend.Complete(ctx, p)
	if g.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		g.Metrics.ModelCalls.WithLabelValues(stage, result).Inc()
		g.Metrics.ModelCallSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
	return out, err
}

func (g *Generator) startRun(surface, stage string) *types.Run {
	if g.Store != nil {
		run, err := g.Store.CreateRun(surface, stage, g.Config.LLM.Model)
		if err == nil {
			return run
		}
		g.logger().Warn("create run", "surface", surface, "err", err)
	}
	now := time.Now().UTC()
	return &types.Run{Surface: surface, Stage: stage, Model: g.Config.LLM.Model, Status: types.StatusRunning, CreatedAt: now, UpdatedAt: now}
}

func (g *Generator) finishRun(run *types.Run, outcomes []pipeline.Outcome) {
	if g.Metrics != nil {
		g.Metrics.Surfaces.WithLabelValues(run.Status).Inc()
	}
	if g.Store == nil || run.ID == "" {
		return
	}
	if err := g.Store.FinishRun(run); err != nil {
		g.logger().Warn("finish run", "run_id", run.ID, "err", err)
		return
	}
	if len(outcomes) == 0 {
		return
	}
	if err := g.Store.SaveResults(run.ID, ScenarioResults(run.ID, outcomes)); err != nil {
		g.logger().Warn("save results", "run_id", run.ID, "err", err)
	}
}

// ScenarioResults converts outcomes into stored per-scenario rows.
func ScenarioResults(runID string, outcomes []pipeline.Outcome) []types.ScenarioResult {
	out := make([]types.ScenarioResult, 0, len(outcomes))
	for i, o := range outcomes {
		r := types.ScenarioResult{RunID: runID, Seq: i + 1, Scenario: o.Scenario}
		if o.OK() {
			r.Status = types.StatusOK
			r.LineCount = len(o.Block.Lines)
		} else {
			r.Status = types.StatusFailed
			if o.Err != nil {
				r.ErrorMsg = o.Err.Error()
			}
		}
		out = append(out, r)
	}
	return out
}

func (g *Generator) countBlock(result string) {
	if g.Metrics != nil {
		g.Metrics.Blocks.WithLabelValues(result).Inc()
	}
}

func (g *Generator) out() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return io.Discard
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return discardLogger
}

func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func report(fn ProgressFunc, msg string) {
	if fn != nil {
		fn(msg)
	}
}
