package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/playback"
)

type followOptions struct {
	start    float64
	interval time.Duration
	player   string
}

func newFollowCommand(ctx *commandContext) *cobra.Command {
	var opts followOptions

	cmd := &cobra.Command{
		Use:   "follow <wav>",
		Short: "Follow a recitation in real time and print each verse as it is reached",
		Long: "Plays the file against the wall clock (optionally through --player) and identifies the verse " +
			"around the current position as fast as passes complete.\n\n" +
			"Each emitted verse is printed as: position | surah - Ayah nnn | C: confidence | TT: asr | TM: match",
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
			return follow(cmd.Context(), cmd.OutOrStdout(), a, clip.Samples, clip.Duration(), args[0], opts)
		},
	}

	cmd.Flags().Float64Var(&opts.start, "start", 0, "Start position in seconds")
	cmd.Flags().DurationVar(&opts.interval, "interval", 10*time.Millisecond, "Clock poll interval")
	cmd.Flags().StringVar(&opts.player, "player", "", "Audio player to launch alongside, e.g. mpv")
	return cmd
}

func follow(ctx context.Context, out io.Writer, a *app.App, samples []float32, duration float64, path string, opts followOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.interval <= 0 {
		opts.interval = 10 * time.Millisecond
	}

	var playerDone <-chan error
	if opts.player != "" {
		player := exec.CommandContext(ctx, opts.player, path, "--start="+strconv.FormatFloat(opts.start, 'f', -1, 64))
		if err := player.Start(); err != nil {
			return fmt.Errorf("failed to start player: %w", err)
		}
		done := make(chan error, 1)
		go func() { done <- player.Wait() }()
		playerDone = done
	}

	session, err := a.Registry.Begin("")
	if err != nil {
		return err
	}
	defer a.Registry.End(session.ID())

	var outMu sync.Mutex
	worker := playback.NewWorker(ctx, session,
		func(ctx context.Context, job playback.Job) playback.Result {
			return a.Pipeline.ProcessAt(ctx, session, samples, job.Position)
		},
		func(job playback.Job, res playback.Result) {
			if !res.Matched() {
				return
			}
			outMu.Lock()
			defer outMu.Unlock()
			fmt.Fprintln(out, formatFollowLine(job.Position, res))
		},
	)
	defer worker.Close()

	fmt.Fprintf(out, "Following %s (%.1fs)\n", path, duration)

	began := time.Now().Add(-time.Duration(opts.start * float64(time.Second)))
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-playerDone:
			worker.Wait()
			return nil
		case now := <-ticker.C:
			position := now.Sub(began).Seconds()
			if position > duration {
				worker.Wait()
				return nil
			}
			// A busy worker keeps only the latest position.
			worker.Submit(playback.Job{Position: position, Captured: now})
		}
	}
}

func formatFollowLine(position float64, res playback.Result) string {
	return fmt.Sprintf("%6.1fs | %-20s - Ayah %03d | C: %.2f | TT: %.2f | TM: %.2f",
		position, res.ChapterName, res.Verse, res.Confidence, res.ASRTime.Seconds(), res.MatchTime.Seconds())
}
