// Command reactor runs a calculator agent on the ReAct loop.
//
// Usage:
//
//	reactor [flags] <question>
//	reactor -config reactor.yaml "What is 12 * (3 + 4)?"
//	reactor -config reactor.yaml -resume <session-id>
//	reactor -config reactor.yaml -sessions
//
// With -script, completions are replayed from a YAML file instead of a
// provider, which makes offline demo runs possible.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/reactor/activity"
	"github.com/martinemde/reactor/agent"
	"github.com/martinemde/reactor/internal/config"
	"github.com/martinemde/reactor/internal/metrics"
	"github.com/martinemde/reactor/llm"
	"github.com/martinemde/reactor/transcript"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "reactor: %v\n", err)
		os.Exit(1)
	}
}

// run is main without process globals, so tests can drive it.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("reactor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	scriptPath := fs.String("script", "", "replay completions from a YAML file instead of calling a provider")
	resume := fs.String("resume", "", "resume a recorded session by id")
	listSessions := fs.Bool("sessions", false, "list recorded sessions and exit")
	verbose := fs.Bool("v", false, "print every activity as it is appended")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: reactor [flags] <question>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if *scriptPath != "" {
		cfg.LLM.Provider = "scripted"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var store *transcript.Store
	if cfg.Transcript.Path != "" {
		store, err = transcript.Open(cfg.Transcript.Path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if *listSessions {
		if store == nil {
			return errors.New("-sessions needs transcript.path in the config")
		}
		ids, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(stdout, id)
		}
		return nil
	}

	initial, offset, err := initialHistory(ctx, store, *resume, fs.Args())
	if err != nil {
		return err
	}

	client, err := newClient(cfg, *scriptPath, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(cfg.Metrics.Namespace, registry, logger)
	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer stop()
	}

	actions, err := newCalculator(bufio.NewReader(stdin), stdout)
	if err != nil {
		return err
	}

	agentCfg := cfg.AgentConfig()
	if agentCfg.Objective == "" || agentCfg.Objective == agent.DefaultObjective {
		agentCfg.Objective = calculatorObjective
	}
	codec := cfg.History.NewCodec()
	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithCodec(codec),
		agent.WithSequencePolicy(cfg.History.SequencePolicy()),
		agent.WithTransformers(cfg.History.Transformers(agentCfg.Model, agentCfg.MaxTokens, codec)...),
		agent.WithMetrics(collector),
	}
	if store != nil {
		opts = append(opts, agent.WithRecorder(store))
	}
	if *resume != "" {
		opts = append(opts, agent.WithSessionID(*resume), agent.WithTurnOffset(offset))
	}

	ctrl, err := agent.NewController(client, actions, initial, agentCfg, opts...)
	if err != nil {
		return err
	}
	if store != nil && *resume == "" {
		if err := store.Commit(ctx, ctrl.ID(), 0, initial); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ctrl.Events() {
			if !*verbose || ev.Kind != agent.EventActivityAppended {
				continue
			}
			label := fmt.Sprint(ev.Data["kind"])
			if name, _ := ev.Data["name"].(string); name != "" {
				label += " " + name
			}
			fmt.Fprintf(stderr, "[turn %d] %s: %s\n", ev.Turn, label, ev.Data["input"])
		}
	}()

	answer, err := ctrl.Invoke(ctx)
	ctrl.Close()
	<-done

	usage, requests := client.Usage()
	logger.Info("llm usage",
		zap.Int("requests", requests),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens))
	fmt.Fprintf(stderr, "session: %s\n", ctrl.ID())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

func initialHistory(ctx context.Context, store *transcript.Store, resume string, args []string) ([]activity.Activity, int, error) {
	if resume != "" {
		if store == nil {
			return nil, 0, errors.New("-resume needs transcript.path in the config")
		}
		acts, err := store.Load(ctx, resume)
		if err != nil {
			return nil, 0, err
		}
		if len(acts) == 0 {
			return nil, 0, fmt.Errorf("session %s has no recorded history", resume)
		}
		last, err := store.LastTurn(ctx, resume)
		if err != nil {
			return nil, 0, err
		}
		return acts, last, nil
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return nil, 0, errors.New("a question is required (see -h)")
	}
	return []activity.Activity{activity.NewObservation("The user says: " + question)}, 0, nil
}

func newClient(cfg *config.Config, scriptPath string, logger *zap.Logger) (*llm.Client, error) {
	provider := cfg.LLM.Provider

	var adapter llm.ProviderAdapter
	if provider == "scripted" {
		responses, err := loadScript(scriptPath)
		if err != nil {
			return nil, err
		}
		adapter = llm.NewScriptedAdapter(provider, responses...)
	} else {
		var opts []llm.GollmAdapterOption
		if cfg.LLM.Model != "" {
			opts = append(opts, llm.WithModel(cfg.LLM.Model))
		}
		if cfg.Agent.MaxTokens > 0 {
			opts = append(opts, llm.WithMaxTokens(cfg.Agent.MaxTokens))
		}
		if cfg.Agent.Temperature != nil {
			opts = append(opts, llm.WithTemperature(*cfg.Agent.Temperature))
		}
		gollmAdapter, err := llm.NewGollmAdapter(provider, cfg.LLM.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		adapter = gollmAdapter
	}

	var mw []llm.Middleware
	if cfg.LLM.Retry.MaxRetries > 0 {
		policy := cfg.RetryPolicy()
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			logger.Warn("retrying llm request",
				zap.String("provider", provider),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
		mw = append(mw, llm.RetryMiddleware(policy))
	}
	if rps := cfg.LLM.RateLimit.RequestsPerSecond; rps > 0 {
		burst := max(cfg.LLM.RateLimit.Burst, 1)
		mw = append(mw, llm.RateLimit(rate.NewLimiter(rate.Limit(rps), burst)))
	}

	return llm.NewClient(
		llm.WithProvider(provider, adapter),
		llm.WithDefaultProvider(provider),
		llm.WithDefaultModel(cfg.LLM.Model),
		llm.WithMiddleware(mw...),
		llm.WithClientLogger(logger),
	), nil
}

func loadScript(path string) ([]llm.ScriptedResponse, error) {
	if path == "" {
		return nil, errors.New("the scripted provider needs -script")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var responses []llm.ScriptedResponse
	if err := yaml.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return responses, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics endpoint shutdown", zap.Error(err))
		}
	}
}
