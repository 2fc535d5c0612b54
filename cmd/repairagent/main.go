// repairagent is the CI-failure repair agent's server process: it wires
// configuration, persistence, the admission pool, the LLM gateway, and
// the HTTP API together and serves until signalled to stop. Grounded on
// the teacher's cmd/tarsy/main.go (flag/env bootstrap, godotenv load,
// gin server startup, graceful-shutdown-on-signal shape).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/repairagent/pkg/api"
	"github.com/codeready-toolchain/repairagent/pkg/config"
	"github.com/codeready-toolchain/repairagent/pkg/graph"
	"github.com/codeready-toolchain/repairagent/pkg/llmapi"
	"github.com/codeready-toolchain/repairagent/pkg/loopdetect"
	"github.com/codeready-toolchain/repairagent/pkg/models"
	"github.com/codeready-toolchain/repairagent/pkg/orchestrator"
	"github.com/codeready-toolchain/repairagent/pkg/pipeline"
	"github.com/codeready-toolchain/repairagent/pkg/reflection"
	"github.com/codeready-toolchain/repairagent/pkg/reliability"
	"github.com/codeready-toolchain/repairagent/pkg/reproduction"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
	"github.com/codeready-toolchain/repairagent/pkg/sourcehost"
	"github.com/codeready-toolchain/repairagent/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v; continuing with existing environment", envPath, err)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	ctx := context.Background()

	dsn := getEnv("DATABASE_URL", "")
	if dsn == "" {
		log.Fatal("DATABASE_URL must be set")
	}
	st, err := store.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer st.Close()
	log.Println("connected to database, migrations applied")

	telemetry := reliability.NewTelemetry(st)
	metrics := reliability.NewMetrics(st)
	_ = reliability.NewAdaptiveThresholdService(cfg.AdaptiveThresholds, metrics)

	persistQueue := reflection.NewPersistenceQueue(ctx, st)
	learner := reflection.NewLearner(persistQueue)

	sourceHostClient := sourcehost.New("")

	provider, err := newLLMProvider(cfg.LLM)
	if err != nil {
		log.Fatalf("constructing llm provider: %v", err)
	}
	defer provider.Close()
	llmGateway := llmapi.NewGateway(provider, cfg.LLM.Model)

	sandboxFactory := func(ctx context.Context, runCfg models.Config, runID string) (sandbox.Sandbox, error) {
		return sandbox.New(toSandboxConfig(cfg, runCfg), runID)
	}

	graphContextFactory := func(runID string, runCfg models.Config, box sandbox.Sandbox) *graph.GraphContext {
		repoRef, err := parseRepoRef(runCfg.RepoURL, runCfg.Token)
		if err != nil {
			slog.Error("parsing repo url, continuing without source host context", "run_id", runID, "error", err)
		}

		// Reproducer and Recovery are both scoped to this session's
		// sandbox, so both are built fresh per run rather than shared
		// off the process-wide telemetry singleton.
		engine := reproduction.New(sandboxFileSystem{box}, llmGateway, sandboxDryRunner{box})
		recovery := reliability.NewRecoveryStrategyService(telemetry, engine.AsReproductionInferrer())

		return &graph.GraphContext{
			RunID:        runID,
			LLM:          llmGateway,
			Sandbox:      box,
			SourceHost:   sourceHostClient,
			Reproducer:   engine,
			LoopDetector: loopdetect.New(cfg.LoopDetector.StrategyShiftConsecutive),
			Telemetry:    telemetry,
			Recovery:     recovery,
			Pipeline:     pipeline.NewPipeline(llmGateway),
			Store:        st,
			RepoRef:      repoRef,
		}
	}

	onSessionComplete := func(state *models.GraphState) {
		errorType := string(models.CategoryUnknown)
		if state.Classification != nil {
			errorType = string(state.Classification.Category)
		}
		runContext := map[string]any{"iteration": state.Iteration}
		if state.Status == models.StatusSuccess {
			learner.RecordSuccess(errorType, runContext)
			return
		}
		attemptedFix := ""
		if state.Plan != nil {
			attemptedFix = state.Plan.Goal
		}
		learner.RecordFailure(errorType, state.FailureReason, attemptedFix, runContext)
	}

	pool := orchestrator.NewPool(cfg.Orchestrator.MaxConcurrentAgents, orchestrator.Dependencies{
		SandboxFactory:      sandboxFactory,
		Store:               st,
		GraphContextFactory: graphContextFactory,
		ResourceThresholds:  cfg.ResourceThresholds,
		OnSessionComplete:   onSessionComplete,
	})
	defer pool.Stop()

	addr := ":" + getEnv("HTTP_PORT", "8080")
	server := api.NewServer(addr, pool, st)

	go func() {
		log.Printf("http server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during http shutdown: %v", err)
	}
	if err := learner.Flush(shutdownCtx); err != nil {
		log.Printf("error flushing reflection learner: %v", err)
	}
}

// newLLMProvider selects a Provider by cfg.Provider, mirroring
// pkg/sandbox.New's switch-on-backend-string construction pattern.
func newLLMProvider(cfg config.LLMConfig) (llmapi.Provider, error) {
	switch cfg.Provider {
	case "grpc":
		return llmapi.NewGRPCProvider(cfg.Addr, cfg.Model)
	case "openai_compat", "":
		return llmapi.NewOpenAICompatProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func toSandboxConfig(processCfg *config.Config, runCfg models.Config) *config.Config {
	merged := *processCfg
	if runCfg.ExecutionBackend != "" {
		merged.ExecutionBackend = config.ExecutionBackend(runCfg.ExecutionBackend)
	}
	return &merged
}

func parseRepoRef(repoURL, token string) (sourcehost.RepoRef, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(repoURL, "https://github.com/"), ".git")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return sourcehost.RepoRef{}, fmt.Errorf("invalid github repo url %q", repoURL)
	}
	return sourcehost.RepoRef{Owner: parts[0], Repo: parts[1], Token: token}, nil
}

// sandboxFileSystem adapts sandbox.Sandbox to pkg/reproduction.FileSystem.
type sandboxFileSystem struct {
	box sandbox.Sandbox
}

func (s sandboxFileSystem) ReadFile(path string) ([]byte, error) {
	return s.box.ReadFile(context.Background(), path)
}

func (s sandboxFileSystem) Glob(pattern string) ([]string, error) {
	// Sandbox exposes no glob primitive; reproduction's strategies that
	// need repo-wide file discovery fall back to an empty result rather
	// than failing the whole inference chain.
	return nil, nil
}

// sandboxDryRunner adapts sandbox.Sandbox to pkg/reproduction.DryRunner.
type sandboxDryRunner struct {
	box sandbox.Sandbox
}

func (s sandboxDryRunner) RunCommand(ctx context.Context, cmd string, timeoutSeconds int) (stdout, stderr string, exitCode int, err error) {
	result, err := s.box.RunCommand(ctx, cmd, sandbox.RunOptions{Timeout: time.Duration(timeoutSeconds) * time.Second})
	if err != nil {
		return "", "", 0, err
	}
	return result.Stdout, result.Stderr, result.ExitCode, nil
}
