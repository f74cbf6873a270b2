package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/playback"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var at float64

	cmd := &cobra.Command{
		Use:   "identify <wav>",
		Short: "Identify the verse recited in a WAV file",
		Long: "Decodes the file, downmixes and resamples it to the processing rate, then runs one pass. " +
			"With --at the pass analyzes the window around that playback position instead of the whole file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			clip, err := app.LoadPlayback(args[0], a.Config.SampleRate)
			if err != nil {
				return err
			}

			var res playback.Result
			if cmd.Flags().Changed("at") {
				res = a.Pipeline.ProcessAt(cmd.Context(), nil, clip.Samples, at)
			} else {
				res = a.Pipeline.ProcessChunk(cmd.Context(), nil, clip.Samples)
			}

			if ctx.flags.json {
				return writeJSON(cmd, res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResult(res))
			return nil
		},
	}

	cmd.Flags().Float64Var(&at, "at", 0, "Playback position in seconds")
	return cmd
}

func renderResult(res playback.Result) string {
	rows := [][]string{{"Status", string(res.Status)}}
	if res.Matched() {
		rows = append(rows,
			[]string{"Verse", fmt.Sprintf("%s - Ayah %03d (%d:%d)", res.ChapterName, res.Verse, res.Chapter, res.Verse)},
			[]string{"Text", res.ArabicText},
			[]string{"Confidence", fmt.Sprintf("%.3f", res.Confidence)},
		)
	}
	if res.Transcript != "" {
		rows = append(rows, []string{"Transcript", res.Transcript})
	}
	if res.ASRTime > 0 {
		rows = append(rows, []string{"ASR time", fmt.Sprintf("%.2fs", res.ASRTime.Seconds())})
	}
	if res.MatchTime > 0 {
		rows = append(rows, []string{"Match time", fmt.Sprintf("%.3fs", res.MatchTime.Seconds())})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
