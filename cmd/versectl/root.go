package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "versectl",
		Short:         "Identify recited verses from audio and text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.initLogging(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.flags.corpus, "corpus", "", "Corpus path (overrides CORPUS_PATH)")
	flags.StringVar(&ctx.flags.format, "format", "", "Corpus format: auto, json, verse-table, word-table, chapter-dir")
	flags.BoolVar(&ctx.flags.lenient, "lenient", false, "Also fold ta marbuta and alef maksura")
	flags.StringVar(&ctx.flags.engine, "engine", "", "ASR engine (overrides ASR_ENGINE)")
	flags.StringVar(&ctx.flags.transcript, "transcript", "", "Fixed transcript; implies --engine static")
	flags.StringVar(&ctx.flags.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL, default warn)")
	flags.BoolVar(&ctx.flags.json, "json", false, "Write JSON instead of tables")

	rootCmd.AddCommand(newNormalizeCommand(ctx))
	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newFollowCommand(ctx))
	rootCmd.AddCommand(newCorpusCommand(ctx))
	rootCmd.AddCommand(newCompareCommand(ctx))
	rootCmd.AddCommand(newServeASRCommand(ctx))

	return rootCmd
}
