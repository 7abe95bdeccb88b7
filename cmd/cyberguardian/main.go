package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/app"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/clients"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/metrics"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/llm/agents/main-agents/coordinator"
)

// Built-in scenario prompts.
var scenarios = map[string]string{
	"ransomware": "Simulate a ransomware outbreak: detect, hunt, investigate, contain, remediate, report.",
	"apt":        "Simulate an APT: proactive threat prevention flow.",
	"zero-day":   "Simulate a zero-day discovery and global protection workflow.",
}

// scenarioPrompt maps a scenario name to its prompt. Unknown names are sent
// to the coordinator as written.
func scenarioPrompt(name string) string {
	if prompt, ok := scenarios[name]; ok {
		return prompt
	}
	return name
}

var errIncomplete = errors.New("workflow did not complete")

type options struct {
	fetch    bool
	pipeline bool
	scenario string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "cyberguardian",
		Short: "CyberGuardian - multi-agent security operations",
		Long: `Runs the security agents from the command line: refresh the threat feeds,
submit the ingestion pipeline, or run a coordinator scenario end to end.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.fetch && !opts.pipeline && opts.scenario == "" {
				return cmd.Help()
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	rootCmd.Flags().BoolVar(&opts.fetch, "fetch", false, "fetch threat feeds, upload them as JSONL and submit ingestion")
	rootCmd.Flags().BoolVar(&opts.pipeline, "pipeline", false, "submit the document ingestion pipeline")
	rootCmd.Flags().StringVar(&opts.scenario, "scenario", "", "run a scenario: ransomware, apt, zero-day or a free-text request")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Output: "stderr"})
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	provider := clients.NewProvider(cfg, m, log)
	defer provider.Close()

	collab, err := app.FromProvider(ctx, provider, log)
	if err != nil {
		return err
	}

	if opts.fetch || opts.pipeline {
		svcs, err := app.NewServices(cfg, collab, m, log)
		if err != nil {
			return err
		}
		if err := runIngestion(ctx, opts, svcs, out); err != nil {
			return err
		}
	}

	if opts.scenario == "" {
		return nil
	}
	a, err := app.Build(cfg, collab, m, log)
	if err != nil {
		return err
	}
	return runScenario(ctx, a.Coordinator, opts.scenario, out, log)
}

func runIngestion(ctx context.Context, opts options, svcs app.Services, out io.Writer) error {
	if opts.fetch {
		uris, err := svcs.Ingestion.FetchAndIngest(ctx)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		for _, uri := range uris {
			fmt.Fprintf(out, "Uploaded %s\n", uri)
		}
	}
	if opts.pipeline {
		msg, err := svcs.Ingestion.SubmitPipeline(ctx, "", "")
		if err != nil {
			return fmt.Errorf("pipeline submission failed: %w", err)
		}
		fmt.Fprintln(out, msg)
	}
	return nil
}

type workflowRunner interface {
	Run(ctx context.Context, req coordinator.Request) (*coordinator.WorkflowResult, error)
}

func runScenario(ctx context.Context, runner workflowRunner, scenario string, out io.Writer, log zerolog.Logger) error {
	result, err := runner.Run(ctx, coordinator.Request{Prompt: scenarioPrompt(scenario)})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Workflow %s (%s)\n\n%s\n", result.ID, result.Class, result.Narrative)
	log.Info().
		Str("workflow", string(result.Class)).
		Strs("completed", result.CompletedSteps()).
		Strs("failed", result.FailedSteps()).
		Msg("Scenario finished")

	if !result.Completed {
		return errIncomplete
	}
	return nil
}
