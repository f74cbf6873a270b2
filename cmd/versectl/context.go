package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/asr"
	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/corpus"
	"github.com/quranlocator/verse-engine/internal/observability"
	"github.com/quranlocator/verse-engine/internal/textnorm"
)

type globalFlags struct {
	corpus     string
	format     string
	lenient    bool
	engine     string
	transcript string
	logLevel   string
	json       bool
}

type commandContext struct {
	flags globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	corpusOnce sync.Once
	normalizer *textnorm.Normalizer
	corpus     *corpus.Corpus
	corpusErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) initLogging(cmd *cobra.Command) {
	level := strings.TrimSpace(c.flags.logLevel)
	if level == "" {
		level = "warn"
	}
	stderr := cmd.ErrOrStderr()
	observability.InitLoggerTo(stderr, level, isTerminal(stderr))
}

// ensureConfig loads the environment configuration and applies the global
// flags. ASR settings are validated only by ensureApp.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Parse()
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.corpus != "" {
			cfg.CorpusPath = c.flags.corpus
		}
		if c.flags.format != "" {
			cfg.CorpusFormat = c.flags.format
		}
		if c.flags.lenient {
			cfg.LenientLetters = true
		}
		if c.flags.engine != "" {
			cfg.ASREngine = strings.ToLower(strings.TrimSpace(c.flags.engine))
		}
		if c.flags.transcript != "" {
			cfg.ASREngine = config.EngineStatic
			cfg.StaticTranscript = c.flags.transcript
		}
		if err := cfg.ValidateCore(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureCorpus(ctx context.Context) (*corpus.Corpus, *textnorm.Normalizer, error) {
	c.corpusOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.corpusErr = err
			return
		}
		n, err := app.NewNormalizer(cfg)
		if err != nil {
			c.corpusErr = err
			return
		}
		crp, err := app.LoadCorpus(ctx, cfg, n)
		if err != nil {
			c.corpusErr = err
			return
		}
		c.normalizer = n
		c.corpus = crp
	})
	return c.corpus, c.normalizer, c.corpusErr
}

// ensureApp wires a full engine with the configured ASR backend.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateASR(); err != nil {
		return nil, err
	}
	crp, n, err := c.ensureCorpus(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := asr.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return app.Assemble(cfg, n, crp, engine), nil
}

func (c *commandContext) textNormalizer() (*textnorm.Normalizer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return app.NewNormalizer(cfg)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func parseKeyArg(arg string) (corpus.Key, error) {
	key, err := corpus.ParseKey(arg)
	if err != nil {
		return corpus.Key{}, fmt.Errorf("invalid verse key %q: expected chapter:verse", arg)
	}
	return key, nil
}
