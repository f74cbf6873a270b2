package match

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/quranlocator/verse-engine/internal/corpus"
	"github.com/quranlocator/verse-engine/internal/textnorm"
)

const (
	// DefaultMinQueryLength is the shortest normalized query, in runes,
	// that is matched at all.
	DefaultMinQueryLength = 8

	// DefaultMinSimilarity is the lowest token-set score accepted by the
	// approximate pass.
	DefaultMinSimilarity = 65.0

	// approximateCeiling caps approximate confidences so that 1.0 is only
	// ever reported for substring hits.
	approximateCeiling = 0.999

	ctxCheckEvery = 256
)

// Result is the outcome of a successful match.
type Result struct {
	Verse       corpus.Verse
	Index       int     // position in the corpus
	Score       float64 // raw similarity in [0,100]; 100 for exact hits
	Confidence  float64 // in [0,1]; exactly 1.0 only for exact hits
	MatchedText string  // normalized query for exact hits, verse text otherwise
	Exact       bool
}

// Matcher finds the verse that best explains a transcript.
type Matcher interface {
	FindBestMatch(ctx context.Context, transcript string) (*Result, bool)
}

// Config holds matching thresholds.
type Config struct {
	MinQueryLength int
	MinSimilarity  float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinQueryLength: DefaultMinQueryLength,
		MinSimilarity:  DefaultMinSimilarity,
	}
}

// LinearMatcher scores every verse in corpus order. It is the reference
// implementation other matchers are validated against.
type LinearMatcher struct {
	corpus     *corpus.Corpus
	normalizer *textnorm.Normalizer
	cfg        Config
}

// NewLinear creates a LinearMatcher. A nil normalizer uses the default one,
// which must be the normalizer the corpus was loaded with.
func NewLinear(c *corpus.Corpus, n *textnorm.Normalizer, cfg Config) *LinearMatcher {
	if n == nil {
		n = textnorm.Default()
	}
	return &LinearMatcher{corpus: c, normalizer: n, cfg: cfg}
}

// Config returns the matcher thresholds.
func (m *LinearMatcher) Config() Config {
	return m.cfg
}

// FindBestMatch returns the first verse containing the normalized transcript,
// or else the highest token-set score at or above the threshold. Equal
// scores keep the earliest verse.
func (m *LinearMatcher) FindBestMatch(ctx context.Context, transcript string) (*Result, bool) {
	query, ok := prepareQuery(m.normalizer, m.cfg, transcript)
	if !ok {
		return nil, false
	}

	if res, ok := exactPass(m.corpus, query); ok {
		return res, true
	}

	best := -1
	bestScore := 0.0
	for i := 0; i < m.corpus.Len(); i++ {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, false
		}
		score := TokenSetRatio(query, m.corpus.Normalized(i))
		if score > bestScore && score >= m.cfg.MinSimilarity {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, false
	}
	return approximateResult(m.corpus, best, bestScore), true
}

func prepareQuery(n *textnorm.Normalizer, cfg Config, transcript string) (string, bool) {
	if strings.TrimSpace(transcript) == "" {
		return "", false
	}
	query := n.Normalize(transcript)
	if utf8.RuneCountInString(query) < cfg.MinQueryLength {
		return "", false
	}
	return query, true
}

func exactPass(c *corpus.Corpus, query string) (*Result, bool) {
	for i := 0; i < c.Len(); i++ {
		if strings.Contains(c.Normalized(i), query) {
			return &Result{
				Verse:       c.Verse(i),
				Index:       i,
				Score:       100,
				Confidence:  1.0,
				MatchedText: query,
				Exact:       true,
			}, true
		}
	}
	return nil, false
}

func approximateResult(c *corpus.Corpus, i int, score float64) *Result {
	confidence := score / 100
	if confidence > approximateCeiling {
		confidence = approximateCeiling
	}
	return &Result{
		Verse:       c.Verse(i),
		Index:       i,
		Score:       score,
		Confidence:  confidence,
		MatchedText: c.Normalized(i),
	}
}
