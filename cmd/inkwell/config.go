package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inkwell-ai/inkwell/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit configuration",
	Long:  "View current configuration or create a default config file.",
	Run:   runConfig,
}

var (
	configInit bool
	configShow bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", true, "Show current configuration")
}

func runConfig(cmd *cobra.Command, args []string) {
	if configInit {
		initConfigFile()
		return
	}

	if configShow {
		showConfig()
	}
}

func initConfigFile() {
	path, err := config.Path()
	if err != nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).
			Render(fmt.Sprintf("Failed to resolve config path: %v", err)))
		os.Exit(1)
	}

	if config.Exists() {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).
			Render(path + " already exists. Use --show to view it."))
		return
	}

	def := config.Default()
	if err := def.Save(); err != nil {
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).
			Render(fmt.Sprintf("Failed to create config: %v", err)))
		os.Exit(1)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).
		Render("Created " + path + " with default settings."))
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - LLM endpoint, API key, and model")
	fmt.Println("  - Agent round cap and system prompt path")
	fmt.Println("  - Memory compaction thresholds")
	fmt.Println("  - Tool manifest path")
}

func showConfig() {
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	fmt.Println(header.Render("Current Configuration:\n"))

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(data))

	fmt.Println(dim.Render("Config file locations (in order of precedence):"))
	fmt.Println("  1. --config flag")
	fmt.Println("  2. ./config.yaml")
	if path, err := config.Path(); err == nil {
		fmt.Println("  3. " + path)
	}
	fmt.Println(dim.Render("\nEnvironment variables with the INKWELL_ prefix override file values."))
}
