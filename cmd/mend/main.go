package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mpataki/mend/internal/config"
	"github.com/mpataki/mend/internal/improve"
	"github.com/mpataki/mend/internal/llm"
	"github.com/mpataki/mend/internal/orchestrator"
	"github.com/mpataki/mend/internal/project"
	"github.com/mpataki/mend/internal/server"
	"github.com/mpataki/mend/internal/storage"
	"github.com/mpataki/mend/internal/tui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mend",
		Short: "Autonomous test-fixing agent",
		Long:  "Mend drives an LLM through a tool-calling loop to make a broken project's test suite pass.",
		RunE:  runTUI,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newDeleteCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("MEND_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	orch := orchestrator.New(store, nil, nil, cfg, newLogger())

	app := tui.NewApp(orch)
	p := tea.NewProgram(app, tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent against a broken project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, _ := cmd.Flags().GetString("project")
			model, _ := cmd.Flags().GetString("model")
			maxTurns, _ := cmd.Flags().GetInt("max-turns")
			noImprove, _ := cmd.Flags().GetBool("no-improve")

			cfg, err := config.New()
			if err != nil {
				return err
			}
			cfg.SetProjectDir(projectDir)

			manifest, err := project.Load(cfg.ProjectDir)
			if err != nil {
				return err
			}
			cfg.Apply(manifest)

			// Flags beat the manifest.
			if model != "" {
				cfg.Model = model
			}
			if maxTurns > 0 {
				cfg.MaxTurns = maxTurns
			}

			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Credentials are checked here, before any run row or backup
			// exists.
			provider, err := llm.New(ctx, cfg)
			if err != nil {
				return err
			}

			logger := newLogger()
			orch := orchestrator.New(store, provider, improve.New(provider, logger), cfg, logger)

			run, err := orch.StartRun()
			if err != nil {
				return fmt.Errorf("failed to start run: %w", err)
			}
			fmt.Printf("Created run #%d\n", run.ID)

			outcome, err := orch.Execute(ctx, run)
			if err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}

			if outcome.Success {
				fmt.Printf("SUCCESS: %s\n", outcome.Message)
				return nil
			}

			fmt.Printf("FAILURE: %s\n", outcome.Reason())
			if noImprove {
				return nil
			}

			fmt.Println("Pivoting to self-improvement mode...")
			rewrote, err := orch.Improve(ctx, outcome.Reason())
			if err != nil {
				// A failed improvement attempt does not change the run's
				// exit status; the run itself was already reported.
				logger.Error("self-improvement failed", "error", err)
				return nil
			}
			if rewrote {
				fmt.Println("Self-improvement complete. The agent has evolved. Please run the agent again.")
			}
			return nil
		},
	}

	cmd.Flags().StringP("project", "p", ".", "Project directory to fix")
	cmd.Flags().String("model", "", "Model to use (overrides config and manifest)")
	cmd.Flags().Int("max-turns", 0, "Turn budget (overrides config and manifest)")
	cmd.Flags().Bool("no-improve", false, "Skip self-improvement after a failed run")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an agent brief from a blueprint prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, _ := cmd.Flags().GetString("project")

			cfg, err := config.New()
			if err != nil {
				return err
			}
			cfg.SetProjectDir(projectDir)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := llm.New(ctx, cfg)
			if err != nil {
				return err
			}

			prompt, err := os.ReadFile(cfg.PromptFile)
			if err != nil {
				return fmt.Errorf("'%s' not found in the project directory", cfg.PromptFile)
			}
			fmt.Printf("Successfully loaded '%s'.\n", cfg.PromptFile)

			fmt.Println("Generating agent brief from prompt... (This may take a moment)")
			reply, err := provider.Generate(ctx, string(prompt))
			if err != nil {
				return fmt.Errorf("failed to generate brief: %w", err)
			}

			fmt.Println("Sanitizing the generated brief...")
			brief := improve.Strip(reply)
			if brief == "" {
				return fmt.Errorf("the generated response was empty after sanitization")
			}

			if err := os.MkdirAll(filepath.Dir(cfg.AgentFile), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(cfg.AgentFile, []byte(brief+"\n"), 0644); err != nil {
				return fmt.Errorf("failed to write the agent brief: %w", err)
			}

			fmt.Printf("Agent brief generated successfully in '%s'!\n", cfg.AgentFile)
			return nil
		},
	}

	cmd.Flags().StringP("project", "p", ".", "Project directory the brief belongs to")
	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP boundary for submitting broken code",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			projectDir, _ := cmd.Flags().GetString("project")

			cfg, err := config.New()
			if err != nil {
				return err
			}
			cfg.SetProjectDir(projectDir)

			manifest, err := project.Load(cfg.ProjectDir)
			if err != nil {
				return err
			}
			cfg.Apply(manifest)

			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(cfg, newLogger(), nil).Run(ctx, port)
		},
	}

	cmd.Flags().Int("port", 5000, "Port to listen on")
	cmd.Flags().StringP("project", "p", ".", "Project directory runs execute against")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}

			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(20)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			for _, run := range runs {
				fmt.Printf("#%d %s [%s] %s\n",
					run.ID, filepath.Base(run.ProjectDir), run.Status,
					truncate(run.Message, 50))
			}

			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show run status and its tool-call trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}

			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(runID)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("Run #%d: %s\n", run.ID, run.ProjectDir)
			fmt.Printf("Status: %s\n", run.Status)
			fmt.Printf("Model: %s\n", run.Model)
			if run.Turns > 0 {
				fmt.Printf("Turns: %d\n", run.Turns)
			}
			if run.Message != "" {
				fmt.Printf("Message: %s\n", run.Message)
			}

			calls, err := store.ListToolCalls(runID)
			if err != nil {
				return err
			}

			if len(calls) > 0 {
				fmt.Println("\nTool Calls:")
				for _, call := range calls {
					status := "ok"
					if call.IsError {
						status = "error"
					}
					fmt.Printf("  %d. %s [%s] %s\n",
						call.Turn, call.Tool, status, truncate(firstLine(call.Result), 60))
				}
			}

			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its tool-call trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run ID: %w", err)
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}

			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}

			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(runID); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}

			fmt.Printf("Deleted run #%d\n", runID)
			return nil
		},
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
