package textnorm

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize is the number of normalized strings kept in memory.
const DefaultCacheSize = 20000

var (
	// Qur'anic annotation marks (stop signs, small high letters)
	reAnnotations = regexp.MustCompile(`[\x{06D6}-\x{06ED}\x{08E4}-\x{08FF}]`)

	// Harakat, superscript alef and tatweel
	reHarakat = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}\x{0640}]`)

	// Bidi, zero-width and BOM controls
	reControls = regexp.MustCompile(`[\x{200B}-\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}\x{FEFF}]`)

	// Verse-number glyphs: optional end-of-ayah/ornate mark, optional bracket,
	// Western or Arabic-Indic digits, optional closing bracket.
	reVerseNumber = regexp.MustCompile(
		`[\x{06DD}\x{06DE}\x{FD3E}\x{FD3F}\x{FDFD}]?[\s\p{Z}]*[(\[{﴾⟬⟮]?[\s\p{Z}]*\p{Nd}+[\s\p{Z}]*[)\]}﴿⟭⟯]?`,
	)

	reSpace = regexp.MustCompile(`[\s\p{Z}\x{85}]+`)

	baseLetters = strings.NewReplacer(
		"أ", "ا",
		"إ", "ا",
		"آ", "ا",
		"ٱ", "ا",
	)

	lenientLetters = strings.NewReplacer(
		"أ", "ا",
		"إ", "ا",
		"آ", "ا",
		"ٱ", "ا",
		"ة", "ه",
		"ى", "ي",
	)
)

// Options selects which normalization steps run.
type Options struct {
	StripHarakat      bool // short vowels, shadda, sukun, superscript alef, tatweel
	StripAnnotations  bool // Qur'anic pause and annotation marks
	StripControls     bool // bidi, zero-width and BOM characters
	StripVerseNumbers bool // digit runs used as verse markers, replaced by a space
	CollapseSpace     bool // collapse whitespace runs and trim
	Lenient           bool // additionally fold ta marbuta and alef maksura
}

// DefaultOptions enables every strip step with strict letter folding.
func DefaultOptions() Options {
	return Options{
		StripHarakat:      true,
		StripAnnotations:  true,
		StripControls:     true,
		StripVerseNumbers: true,
		CollapseSpace:     true,
	}
}

func (o Options) key() byte {
	var k byte
	if o.StripHarakat {
		k |= 1 << 0
	}
	if o.StripAnnotations {
		k |= 1 << 1
	}
	if o.StripControls {
		k |= 1 << 2
	}
	if o.StripVerseNumbers {
		k |= 1 << 3
	}
	if o.CollapseSpace {
		k |= 1 << 4
	}
	if o.Lenient {
		k |= 1 << 5
	}
	return 'A' + k
}

// Normalizer canonicalizes Arabic script text and memoizes recent results.
// It is safe for concurrent use.
type Normalizer struct {
	opts  Options
	cache *ristretto.Cache[string, string]
}

// New creates a Normalizer with the given options and a cache bounded to
// cacheSize entries. A cacheSize of zero or less disables memoization.
func New(opts Options, cacheSize int) (*Normalizer, error) {
	n := &Normalizer{opts: opts}
	if cacheSize <= 0 {
		return n, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters:        int64(cacheSize) * 10,
		MaxCost:            int64(cacheSize), // one unit per entry
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	n.cache = cache
	return n, nil
}

// Options returns the options this normalizer applies.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize returns the canonical form of text.
func (n *Normalizer) Normalize(text string) string {
	return n.NormalizeWith(text, n.opts)
}

// NormalizeWith normalizes text using opts instead of the normalizer's own
// options. Results are cached per (text, opts).
func (n *Normalizer) NormalizeWith(text string, opts Options) string {
	if text == "" {
		return ""
	}
	if n.cache == nil {
		return apply(text, opts)
	}

	key := string(opts.key()) + text
	if v, ok := n.cache.Get(key); ok {
		return v
	}
	v := apply(text, opts)
	n.cache.Set(key, v, 1)
	return v
}

// Close releases the cache.
func (n *Normalizer) Close() {
	if n.cache != nil {
		n.cache.Close()
	}
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// Default returns a process-wide normalizer using DefaultOptions.
func Default() *Normalizer {
	defaultOnce.Do(func() {
		n, err := New(DefaultOptions(), DefaultCacheSize)
		if err != nil {
			n = &Normalizer{opts: DefaultOptions()}
		}
		defaultNormalizer = n
	})
	return defaultNormalizer
}

// Normalize normalizes text with the shared default normalizer's cache.
func Normalize(text string, opts Options) string {
	return Default().NormalizeWith(text, opts)
}

// apply runs the pipeline. Decomposition must precede the mark strips so
// precomposed letters (hamza forms, presentation forms) expose their marks,
// and letter folding must follow recomposition.
func apply(text string, opts Options) string {
	t := norm.NFKD.String(text)

	if opts.StripAnnotations {
		t = reAnnotations.ReplaceAllString(t, "")
	}
	if opts.StripHarakat {
		t = reHarakat.ReplaceAllString(t, "")
	}
	if opts.StripControls {
		t = reControls.ReplaceAllString(t, "")
	}
	if opts.StripVerseNumbers {
		t = reVerseNumber.ReplaceAllString(t, " ")
	}

	t = norm.NFC.String(t)

	folder := baseLetters
	if opts.Lenient {
		folder = lenientLetters
	}
	// With harakat kept, a folded letter can sit next to a hamza mark that
	// NFC composes into a new foldable letter. Fold until stable.
	for {
		folded := norm.NFC.String(folder.Replace(t))
		if folded == t {
			break
		}
		t = folded
	}

	if opts.CollapseSpace {
		t = strings.TrimSpace(reSpace.ReplaceAllString(t, " "))
	}
	return t
}

// IsStripped reports whether r is removed by a fully enabled normalizer.
func IsStripped(r rune) bool {
	switch {
	case r >= 0x06D6 && r <= 0x06ED, r >= 0x08E4 && r <= 0x08FF:
		return true
	case r >= 0x064B && r <= 0x065F, r == 0x0670, r == 0x0640:
		return true
	case r >= 0x200B && r <= 0x200F, r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069, r == 0xFEFF:
		return true
	}
	return false
}
