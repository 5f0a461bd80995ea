package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/cowork-ai/swarm"
	"github.com/cowork-ai/swarm/model/anthropic"
	"github.com/cowork-ai/swarm/model/openai"
	"github.com/cowork-ai/swarm/telemetry"
)

// CLI configuration
type cliConfig struct {
	Request       string
	Mode          string
	WorkflowFile  string
	Resume        string
	Cleanup       bool
	CheckpointDir string
	Timeout       time.Duration
	Verbose       bool
}

func main() {
	flags := parseFlags()

	cfg, err := swarm.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if flags.CheckpointDir != "" {
		cfg.CheckpointDir = flags.CheckpointDir
	}

	logger := setupLogger(flags.Verbose, cfg.LogFormat)

	ctx := context.Background()
	if flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.Timeout)
		defer cancel()
		color.Yellow("Timeout: %v", flags.Timeout)
	}

	shutdown, err := telemetry.Init(ctx, telemetry.InitOptions{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "swarm",
		Insecure:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	store, err := swarm.NewFileStateStore(cfg.CheckpointDir)
	if err != nil {
		log.Fatalf("Failed to create state store: %v", err)
	}
	checkpoints, err := swarm.NewCheckpointManager(swarm.CheckpointManagerOptions{
		Store:     store,
		Retention: cfg.CheckpointRetention,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create checkpoint manager: %v", err)
	}

	if flags.Cleanup {
		removed, err := checkpoints.CleanupOld(ctx)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		color.Green("Removed %d old checkpoints", removed)
		return
	}

	metrics := telemetry.NewCollector()
	registry := swarm.NewRegistry()
	registerAgents(registry)

	switch {
	case flags.WorkflowFile != "":
		runWorkflowFile(ctx, flags, registry, logger, metrics, checkpoints)
	case flags.Request != "":
		runRequest(ctx, flags, registry, logger, metrics, checkpoints)
	default:
		color.Red("Error: either -request or -file is required")
		flag.Usage()
		os.Exit(1)
	}

	showMetrics(metrics)
}

func runRequest(ctx context.Context, flags *cliConfig, registry *swarm.Registry,
	logger *slog.Logger, metrics *telemetry.Collector, checkpoints *swarm.CheckpointManager) {

	coordinator, err := swarm.NewCoordinator(swarm.CoordinatorOptions{
		Registry:    registry,
		Metrics:     metrics,
		Logger:      logger,
		Checkpoints: checkpoints,
	})
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}

	mode, err := parseMode(flags.Mode)
	if err != nil {
		log.Fatalf("%v", err)
	}

	color.Blue("Request: %s", flags.Request)
	start := time.Now()
	result, err := coordinator.Execute(ctx, flags.Request, mode)
	if err != nil {
		log.Fatalf("Execution failed: %v", err)
	}

	color.White("Run %s finished in %v", result.RunID, time.Since(start))
	color.White("Tasks: %d completed, %d failed", result.TasksCompleted, result.TasksFailed)
	color.White("Agents: %s", strings.Join(result.AgentsUsed, ", "))
	if result.Success {
		color.Green("Success!")
	} else {
		color.Red("One or more tasks failed")
	}
	fmt.Println()
	fmt.Println(result.Content)
}

func runWorkflowFile(ctx context.Context, flags *cliConfig, registry *swarm.Registry,
	logger *slog.Logger, metrics *telemetry.Collector, checkpoints *swarm.CheckpointManager) {

	if _, err := os.Stat(flags.WorkflowFile); os.IsNotExist(err) {
		color.Red("Error: workflow file '%s' not found", flags.WorkflowFile)
		os.Exit(1)
	}

	color.Blue("Loading workflow from: %s", flags.WorkflowFile)
	wf, err := swarm.LoadWorkflowFile(ctx, flags.WorkflowFile, registry, swarm.WorkflowOptions{
		Logger:      logger,
		Metrics:     metrics,
		Checkpoints: checkpoints,
	})
	if err != nil {
		log.Fatalf("Failed to load workflow: %v", err)
	}
	color.Cyan("Workflow: %s (%d steps)", wf.Name(), len(wf.Steps()))
	swarm.AttachFormatter(wf, swarm.NewConsoleFormatter())

	input := flags.Request
	var result *swarm.WorkflowResult

	if flags.Resume != "" {
		seq, ok := wf.(*swarm.SequentialWorkflow)
		if !ok {
			log.Fatalf("Only sequential workflows can be resumed")
		}
		cp, err := checkpoints.Store().Load(ctx, flags.Resume)
		if err != nil {
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
		if cp == nil {
			log.Fatalf("Checkpoint %q not found", flags.Resume)
		}
		color.Yellow("Resuming from step %d/%d", cp.CurrentStep, cp.TotalSteps)
		result, err = seq.Resume(ctx, cp, input)
		if err != nil {
			log.Fatalf("Resume failed: %v", err)
		}
	} else {
		result, err = wf.Execute(ctx, input, nil)
		if err != nil {
			log.Fatalf("Workflow failed: %v", err)
		}
	}

	color.White("Completed %d steps in %v", result.StepsCompleted, result.Duration)
	if result.Success {
		color.Green("Workflow successful!")
	} else {
		color.Red("Workflow failed")
	}
	fmt.Println()
	fmt.Println(result.Output)
}

// registerAgents wires model-backed agents when API keys are available and
// falls back to local echo agents otherwise, so the CLI works offline.
func registerAgents(registry *swarm.Registry) {
	registered := false
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		agent := anthropic.NewAgent(
			anthropic.WithName("claude"),
			anthropic.WithCapabilities(
				swarm.CapabilityConversation,
				swarm.CapabilityCodeGeneration,
				swarm.CapabilityCodeAnalysis,
				swarm.CapabilityContentWriting,
			),
		)
		_, _ = registry.Register(agent, swarm.WithPriority(10))
		registered = true
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		agent := openai.NewAgent(
			openai.WithName("gpt"),
			openai.WithCapabilities(
				swarm.CapabilityConversation,
				swarm.CapabilityContentWriting,
				swarm.CapabilityWebSearch,
			),
		)
		_, _ = registry.Register(agent, swarm.WithPriority(5))
		registered = true
	}
	if registered {
		return
	}

	color.Yellow("No API keys found, registering local echo agents")
	caps := []swarm.Capability{swarm.CapabilityConversation}
	for _, rule := range swarm.DefaultIntentRules() {
		caps = append(caps, rule.Capability)
	}
	for _, c := range caps {
		name := "echo-" + string(c)
		agent := swarm.NewAgentFunction(name, []swarm.Capability{c},
			func(ctx context.Context, message string, vars map[string]any) (*swarm.Response, error) {
				return &swarm.Response{
					AgentName: name,
					Content:   fmt.Sprintf("[%s] %s", c, message),
					Success:   true,
				}, nil
			})
		_, _ = registry.Register(agent)
	}
}

func showMetrics(metrics *telemetry.Collector) {
	summary := metrics.GetSummary()
	if summary.TotalRequests == 0 {
		return
	}
	fmt.Println()
	color.Magenta("Agent metrics:")
	for name, m := range metrics.All() {
		fmt.Printf("  %s: %d requests, %.1f%% success, avg latency %v\n",
			name, m.TotalRequests, m.SuccessRate(), m.AvgLatency())
	}
}

func parseMode(mode string) (swarm.WorkflowMode, error) {
	switch mode {
	case "sequential":
		return swarm.ModeSequential, nil
	case "parallel":
		return swarm.ModeParallel, nil
	case "adaptive", "":
		return swarm.ModeAdaptive, nil
	default:
		return "", fmt.Errorf("invalid mode %q: want sequential, parallel, or adaptive", mode)
	}
}

func setupLogger(verbose bool, format string) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if format == "json" {
		return telemetry.NewJSONLogger(os.Stderr, level)
	}
	return telemetry.NewLogger(level)
}

func parseFlags() *cliConfig {
	flags := &cliConfig{}

	flag.StringVar(&flags.Request, "request", "", "Natural language request to route through the coordinator")
	flag.StringVar(&flags.Request, "r", "", "Natural language request (shorthand)")

	flag.StringVar(&flags.Mode, "mode", "adaptive", "Execution mode: sequential, parallel, or adaptive")

	flag.StringVar(&flags.WorkflowFile, "file", "", "Path to a YAML workflow definition")
	flag.StringVar(&flags.WorkflowFile, "f", "", "Path to a YAML workflow definition (shorthand)")

	flag.StringVar(&flags.Resume, "resume", "", "Checkpoint id to resume a sequential workflow from")
	flag.BoolVar(&flags.Cleanup, "cleanup", false, "Remove checkpoints older than the retention window and exit")

	flag.StringVar(&flags.CheckpointDir, "checkpoints", "", "Directory for workflow checkpoints (overrides SWARM_CHECKPOINT_DIR)")

	flag.DurationVar(&flags.Timeout, "timeout", 0, "Execution timeout (e.g., 30s, 5m)")
	flag.DurationVar(&flags.Timeout, "t", 0, "Execution timeout (shorthand)")

	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.Verbose, "v", false, "Enable verbose logging (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Swarm CLI - Route requests across registered agents

Usage: %s [options]

Examples:
  # Route a request, letting the coordinator pick the mode
  %s -request "Search for recent AI papers, then summarize the findings"

  # Force parallel fan-out
  %s -request "Compare Go and Rust for systems work" -mode parallel

  # Run a declarative workflow with checkpointing
  %s -file pipeline.yaml -request "quarterly report" -checkpoints ./checkpoints

  # Resume an interrupted workflow
  %s -file pipeline.yaml -resume chk_01h455vb4pex5vsknk084sn02q

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return flags
}
