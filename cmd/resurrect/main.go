package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/resurrect-systems/resurrect/pkg/adapter"
	"github.com/resurrect-systems/resurrect/pkg/agent"
	"github.com/resurrect-systems/resurrect/pkg/config"
	"github.com/resurrect-systems/resurrect/pkg/server"
	"github.com/resurrect-systems/resurrect/pkg/sources"
	"github.com/resurrect-systems/resurrect/pkg/stage"
)

var (
	adapterFlag string
	modelFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resurrect",
		Short: "AI-driven remediation for failed deployments",
		Long: `Resurrect analyzes failed CI/CD deployments with an LLM and
	produces a reviewable fix: root-cause analysis, candidate solutions,
	and concrete file changes ready to open as a pull request.`,
	}

	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "gateway to use (anthropic, openai, google, deepseek, mock)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model to use")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fixCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long: `Starts the HTTP server that accepts deployment-failure webhooks
	and per-stage invocations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}

			runner, err := buildRunner(cfg)
			if err != nil {
				return err
			}

			orch := agent.New(runner, buildLogSource(cfg), buildFileSource(cfg),
				agent.WithFetchLimit(cfg.FetchLimit))

			srv := server.New(orch, runner, cfg.Addr, cfg.StageTimeout)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func fixCmd() *cobra.Command {
	var (
		owner        string
		repo         string
		branch       string
		deploymentID string
		errorMessage string
		logFile      string
	)

	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Run the remediation pipeline once and print the result",
		Long: `Runs analyze, search, generate and pr against one failed
	deployment and prints the resulting fix payload as JSON.

	Build logs are fetched from the configured log collaborator when
	--deployment-id is set, or read from --log-file for offline use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			runner, err := buildRunner(cfg)
			if err != nil {
				return err
			}

			logs := buildLogSource(cfg)
			if logFile != "" {
				data, err := os.ReadFile(logFile)
				if err != nil {
					return fmt.Errorf("failed to read log file: %w", err)
				}
				if deploymentID == "" {
					deploymentID = "local"
				}
				mem := sources.NewMemoryLogSource()
				mem.Put(deploymentID, strings.Split(strings.TrimRight(string(data), "\n"), "\n"))
				logs = mem
			}

			orch := agent.New(runner, logs, buildFileSource(cfg),
				agent.WithFetchLimit(cfg.FetchLimit))

			res := orch.Run(ctx, agent.Input{
				Owner:        owner,
				Repo:         repo,
				Branch:       branch,
				DeploymentID: deploymentID,
				ErrorMessage: errorMessage,
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Succeeded() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name")
	cmd.Flags().StringVar(&branch, "branch", "", "branch of the failed deployment")
	cmd.Flags().StringVar(&deploymentID, "deployment-id", "", "deployment to fetch build logs for")
	cmd.Flags().StringVar(&errorMessage, "error-message", "", "error message when logs are unavailable")
	cmd.Flags().StringVar(&logFile, "log-file", "", "read build logs from a file instead of the log collaborator")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("branch")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available gateways and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			adapters, err := createAdapters(cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapters: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, name := range []string{"anthropic", "openai", "google", "deepseek", "mock"} {
				status := "no key"
				models := "-"
				if a, ok := adapters[name]; ok {
					status = "ready"
					models = strings.Join(a.Models(), ", ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, models, status)
			}
			return w.Flush()
		},
	}
}

// buildRunner selects the gateway from flags and config and wraps it
// in a stage runner.
func buildRunner(cfg *config.Config) (*stage.Runner, error) {
	adapters, err := createAdapters(cfg)
	if err != nil {
		return nil, err
	}

	name := cfg.Adapter
	if adapterFlag != "" {
		name = adapterFlag
	}
	a, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("adapter %q not available (missing API key?)", name)
	}

	model := cfg.Model
	if modelFlag != "" {
		model = modelFlag
	}
	return stage.NewRunner(a, model), nil
}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := map[string]adapter.Adapter{
		"mock": adapter.NewMockAdapter(),
	}

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	return adapters, nil
}

func buildLogSource(cfg *config.Config) sources.LogSource {
	if cfg.LogEndpoint != "" {
		return sources.NewHTTPLogSource(cfg.LogEndpoint)
	}
	return sources.NewMemoryLogSource()
}

func buildFileSource(cfg *config.Config) sources.FileSource {
	if cfg.FileEndpoint != "" {
		return sources.NewHTTPFileSource(cfg.FileEndpoint)
	}
	return sources.NewMemoryFileSource(nil)
}
