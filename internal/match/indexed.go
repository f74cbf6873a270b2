package match

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/quranlocator/verse-engine/internal/corpus"
	"github.com/quranlocator/verse-engine/internal/textnorm"
)

// IndexedMatcher returns exactly what LinearMatcher returns but skips
// token-set scoring for verses that cannot reach the threshold.
//
// A verse sharing no token with the query scores the plain indel ratio of
// the two sorted token strings, which is bounded by their length ratio. Only
// verses that share a token, or whose length bound clears the threshold, are
// scored. Candidates are still visited in corpus order so ties resolve the
// same way.
type IndexedMatcher struct {
	corpus     *corpus.Corpus
	normalizer *textnorm.Normalizer
	cfg        Config

	postings  map[string][]int // token -> ascending verse indices
	sortedLen []int            // rune length of each verse's sorted unique tokens joined
}

// NewIndexed builds the token index for c.
func NewIndexed(c *corpus.Corpus, n *textnorm.Normalizer, cfg Config) *IndexedMatcher {
	if n == nil {
		n = textnorm.Default()
	}
	m := &IndexedMatcher{
		corpus:     c,
		normalizer: n,
		cfg:        cfg,
		postings:   make(map[string][]int),
		sortedLen:  make([]int, c.Len()),
	}
	for i := 0; i < c.Len(); i++ {
		toks := uniqueSorted(c.Normalized(i))
		m.sortedLen[i] = utf8.RuneCountInString(strings.Join(toks, " "))
		for _, tok := range toks {
			m.postings[tok] = append(m.postings[tok], i)
		}
	}
	return m
}

// FindBestMatch implements Matcher.
func (m *IndexedMatcher) FindBestMatch(ctx context.Context, transcript string) (*Result, bool) {
	query, ok := prepareQuery(m.normalizer, m.cfg, transcript)
	if !ok {
		return nil, false
	}

	if res, ok := exactPass(m.corpus, query); ok {
		return res, true
	}

	queryToks := uniqueSorted(query)
	queryLen := utf8.RuneCountInString(strings.Join(queryToks, " "))

	shared := make([]bool, m.corpus.Len())
	for _, tok := range queryToks {
		for _, i := range m.postings[tok] {
			shared[i] = true
		}
	}

	best := -1
	bestScore := 0.0
	for i := 0; i < m.corpus.Len(); i++ {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, false
		}
		if !shared[i] && lengthBound(queryLen, m.sortedLen[i]) < m.cfg.MinSimilarity {
			continue
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

// lengthBound is the highest indel ratio two strings of these lengths can have.
func lengthBound(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return normalizedSimilarity(diff, a+b)
}

func uniqueSorted(s string) []string {
	set := tokenSet(s)
	toks := make([]string, 0, len(set))
	for tok := range set {
		toks = append(toks, tok)
	}
	sort.Strings(toks)
	return toks
}
