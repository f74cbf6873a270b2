package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/corpus"
)

type corpusStatsOutput struct {
	Source   string       `json:"source"`
	Verses   int          `json:"verses"`
	Chapters int          `json:"chapters"`
	Stats    corpus.Stats `json:"stats"`
}

func newCorpusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the verse corpus",
	}
	cmd.AddCommand(newCorpusStatsCommand(ctx))
	cmd.AddCommand(newCorpusShowCommand(ctx))
	return cmd
}

func newCorpusStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many verses were loaded and skipped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			crp, _, err := ctx.ensureCorpus(cmd.Context())
			if err != nil {
				return err
			}

			out := corpusStatsOutput{
				Source:   crp.Source().String(),
				Verses:   crp.Len(),
				Chapters: crp.Chapters(),
				Stats:    crp.Stats(),
			}
			if ctx.flags.json {
				return writeJSON(cmd, out)
			}

			rows := [][]string{
				{"Source", out.Source},
				{"Verses", strconv.Itoa(out.Verses)},
				{"Chapters", strconv.Itoa(out.Chapters)},
				{"Skipped", strconv.Itoa(out.Stats.Skipped)},
				{"Duplicates", strconv.Itoa(out.Stats.Duplicates)},
				{"Empty after normalization", strconv.Itoa(out.Stats.Empty)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newCorpusShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <chapter:verse>...",
		Short: "Show verses with their normalized form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			crp, _, err := ctx.ensureCorpus(cmd.Context())
			if err != nil {
				return err
			}

			verses := make([]corpus.Verse, 0, len(args))
			for _, arg := range args {
				key, err := parseKeyArg(arg)
				if err != nil {
					return err
				}
				v, ok := crp.Lookup(key)
				if !ok {
					return fmt.Errorf("verse %s not found", key)
				}
				verses = append(verses, v)
			}

			if ctx.flags.json {
				return writeJSON(cmd, verses)
			}
			rows := make([][]string, 0, len(verses))
			for _, v := range verses {
				rows = append(rows, []string{v.Key().String(), v.ChapterName, v.Text, v.Normalized})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Surah", "Text", "Normalized"}, rows, nil))
			return nil
		},
	}
}
