package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/match"
)

type matchOutput struct {
	Matched    bool    `json:"matched"`
	Query      string  `json:"query"`
	Surah      int     `json:"surah,omitempty"`
	SurahName  string  `json:"surah_name,omitempty"`
	Ayah       int     `json:"ayah,omitempty"`
	ArabicText string  `json:"arabic_text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Exact      bool    `json:"exact,omitempty"`
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var linear bool

	cmd := &cobra.Command{
		Use:   "match <text...>",
		Short: "Find the verse that best matches a transcript",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			crp, n, err := ctx.ensureCorpus(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()

			var matcher match.Matcher
			if linear {
				matcher = match.NewLinear(crp, n, app.MatchConfig(cfg))
			} else {
				matcher = match.NewIndexed(crp, n, app.MatchConfig(cfg))
			}

			query := strings.Join(args, " ")
			out := matchOutput{Query: n.Normalize(query)}
			res, ok := matcher.FindBestMatch(cmd.Context(), query)
			if ok {
				out.Matched = true
				out.Surah = res.Verse.Chapter
				out.SurahName = res.Verse.ChapterName
				out.Ayah = res.Verse.Number
				out.ArabicText = res.Verse.Text
				out.Confidence = res.Confidence
				out.Score = res.Score
				out.Exact = res.Exact
			}

			if ctx.flags.json {
				return writeJSON(cmd, out)
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No match for %q\n", out.Query)
				return nil
			}
			rows := [][]string{{
				fmt.Sprintf("%d:%d", out.Surah, out.Ayah),
				out.SurahName,
				fmt.Sprintf("%.3f", out.Confidence),
				fmt.Sprintf("%t", out.Exact),
				out.ArabicText,
			}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Surah", "Confidence", "Exact", "Text"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&linear, "linear", false, "Score every verse instead of using the token index")
	return cmd
}
