// Package main provides the docqa CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/docqa/cli"
	"github.com/richinex/docqa/config"
)

var (
	// Global flags
	provider   string
	maxIter    int
	configPath string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about your documents, the web and Arxiv papers",
		Long: `docqa is a conversational assistant. For each question a language model
decides whether to search the uploaded documents, the web, or Arxiv, or to
answer directly, and keeps the conversation context across turns.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "",
		"LLM provider ("+strings.Join(config.SupportedProviders(), ", ")+"); defaults to LLM_PROVIDER or groq")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum agent iterations per question (default from config, 5)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show reasoning steps and debug logs")

	rootCmd.AddCommand(chatCmd(ctx))
	rootCmd.AddCommand(askCmd(ctx))
	rootCmd.AddCommand(ingestCmd(ctx))
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:   provider,
		MaxIter:    maxIter,
		ConfigPath: configPath,
		Verbose:    verbose,
	}
}

func chatCmd(ctx context.Context) *cobra.Command {
	var docs []string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Inside the chat, /upload <files...> adds PDF or text documents, /tools lists
the active tools, /history shows the conversation and /reset clears it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(ctx, docs, options(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringArrayVarP(&docs, "doc", "d", nil, "Document to load before chatting (repeatable)")
	return cmd
}

func askCmd(ctx context.Context) *cobra.Command {
	var docs []string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(ctx, strings.Join(args, " "), docs, options(), os.Stdout)
		},
	}

	cmd.Flags().StringArrayVarP(&docs, "doc", "d", nil, "Document to search (repeatable)")
	return cmd
}

func ingestCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Extract, chunk and embed documents, reporting per-file results",
		Long: `Extract, chunk and embed documents without starting a conversation.

With RETRIEVAL_CACHE_PATH set, embeddings are stored in SQLite and reused by
later chat and ask runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ingest(ctx, args, options(), os.Stdout)
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(options(), os.Stdout)
		},
	}
}
