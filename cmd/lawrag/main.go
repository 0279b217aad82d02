package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lawrag/internal/app"
	"lawrag/internal/citation"
	"lawrag/internal/config"
	"lawrag/internal/logger"
	"lawrag/internal/server"
	"lawrag/internal/service"
	"lawrag/internal/session"
	"lawrag/internal/tui"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "lawrag",
		Short: "Question answering over the Chinese labor law",
		Long:  "lawrag splits a statute into articles, indexes them in a vector collection and answers questions citing the retrieved articles. Without a subcommand it builds the index when none exists and opens the chat UI.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				need, err := a.NeedsIndex(ctx)
				if err != nil {
					return err
				}
				if need {
					if err := rebuild(ctx, a); err != nil {
						return err
					}
				} else if err := a.Service.Open(ctx); err != nil {
					return err
				}
				return runChat(ctx, a)
			})
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config file (default ./config.yaml or ~/.config/lawrag/config.yaml)")

	rootCmd.AddCommand(createIndexCommand())
	rootCmd.AddCommand(createServeCommand())
	rootCmd.AddCommand(createChatCommand())
	rootCmd.AddCommand(createAskCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}

// withApp loads the config, wires the components and closes them after fn.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func rebuild(ctx context.Context, a *app.App) error {
	res, err := a.Service.Rebuild(ctx, a.Config.Data.Dir)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	fmt.Printf("Indexed %d articles from %d documents into %q (embedder %s, dimension %d)\n",
		res.Chunks, res.Documents, res.Collection, res.Embedder, res.Dimension)
	if res.Degraded {
		fmt.Println("Warning: the embedding function was unavailable; the index holds placeholder vectors and retrieval quality is degraded.")
	}
	return nil
}

func runChat(ctx context.Context, a *app.App) error {
	info := a.Service.IndexInfo()
	header := fmt.Sprintf("%s · %d 条 · %s", info.Name, info.Count, info.Embedder)
	if info.Degraded {
		header += " · 占位向量"
	}
	_, err := tea.NewProgram(tui.New(ctx, a.Service, header), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func createIndexCommand() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the statute index",
		Long:  "Read every .txt statute in the data directory, split it into articles and rebuild the vector collection from scratch.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if dataDir != "" {
					a.Config.Data.Dir = dataDir
				}
				return rebuild(ctx, a)
			})
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Directory of statute .txt files (overrides config)")

	return cmd
}

func createServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serve question answering, chat sessions, index info and Prometheus metrics over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Service.Open(ctx); err != nil {
					return err
				}
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				h := server.NewHandler(a.Service, session.NewRegistry(), a.Metrics, logger.Component(a.Log, "http"))
				return server.Run(ctx, addr, h.Router(), a.Log)
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")

	return cmd
}

func createChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Service.Open(ctx); err != nil {
					return err
				}
				return runChat(ctx, a)
			})
		},
	}
}

func createAskCommand() *cobra.Command {
	var noSource bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Service.Open(ctx); err != nil {
					return err
				}
				resp, err := a.Service.Ask(ctx, service.Request{Question: strings.Join(args, " "), ShowSource: !noSource})
				if err != nil {
					return err
				}
				fmt.Println(resp.Answer)
				if len(resp.SourceDocuments) > 0 {
					fmt.Println("\n参考法条")
					for _, s := range resp.SourceDocuments {
						fmt.Printf("来源: %s - %s\n> %s\n", s.Source, s.Article, citation.Truncate(s.Content, citation.DisplayRunes))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noSource, "no-source", false, "Do not print the cited articles")

	return cmd
}
