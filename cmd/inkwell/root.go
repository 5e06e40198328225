package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/agent"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/llm"
	"github.com/inkwell-ai/inkwell/internal/memory"
	"github.com/inkwell-ai/inkwell/internal/tools"
)

var (
	cfgPath     string
	modelName   string
	baseURL     string
	verbose     bool
	interactive bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inkwell [message]",
	Short: "Conversational writing assistant with tool-calling",
	Long: `
 ██╗███╗   ██╗██╗  ██╗██╗    ██╗███████╗██╗     ██╗
 ██║████╗  ██║██║ ██╔╝██║    ██║██╔════╝██║     ██║
 ██║██╔██╗ ██║█████╔╝ ██║ █╗ ██║█████╗  ██║     ██║
 ██║██║╚██╗██║██╔═██╗ ██║███╗██║██╔══╝  ██║     ██║
 ██║██║ ╚████║██║  ██╗╚███╔███╔╝███████╗███████╗███████╗
 ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝ ╚══╝╚══╝ ╚══════╝╚══════╝╚══════╝

  Conversational writing assistant. Draft, revise, and manage
  text artifacts through natural language, with model-driven
  tool calls along the way.

Usage:
  inkwell "draft an intro about coffee"   Run a one-shot turn
  inkwell --it                            Start interactive chat
  inkwell serve                           Run the HTTP/WebSocket server
  inkwell tools                           List available tools
  inkwell config                          View/edit configuration
  inkwell version                         Show version info`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if modelName != "" {
			cfg.LLM.Model = modelName
		}
		if baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}

		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		if interactive {
			runInteractive()
			return
		}

		if len(args) > 0 {
			runOneShot(args)
			return
		}

		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&interactive, "it", false, "Start interactive chat")

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "LLM model to use")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "LLM API base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildLogger creates the zap logger from config. Verbose always wins.
func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	if verbose || lc.Development {
		return zap.NewDevelopment()
	}

	zc := zap.NewProductionConfig()
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", lc.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// buildRegistry assembles the tool registry. When a manifest is configured it
// supplies the specs the model sees; otherwise the built-in specs apply.
func buildRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry(logger)

	if cfg.Tools.ManifestPath != "" {
		manifest, err := tools.LoadManifest(cfg.Tools.ManifestPath)
		if err != nil {
			return nil, err
		}
		if err := manifest.RegisterAll(registry, tools.BuiltinHandlers()); err != nil {
			return nil, err
		}
		return registry, nil
	}

	if err := tools.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// buildOrchestrator wires the registry, model client, and memory manager into
// a turn orchestrator.
func buildOrchestrator(registry *tools.Registry) *agent.Orchestrator {
	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})

	return agent.New(agent.Config{
		Model:         client,
		Registry:      registry,
		Memory:        memory.NewManager(cfg.Memory.MaxMessages, cfg.Memory.ItemMaxChars, cfg.Memory.SummaryMaxChars),
		SystemPrompt:  llm.BuildSystemPrompt(cfg.Agent.SystemPromptPath, registry.Specs()),
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		Logger:        logger,
	})
}
