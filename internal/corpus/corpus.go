package corpus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCorpus is returned by Require when nothing could be loaded.
	ErrEmptyCorpus = errors.New("corpus is empty")

	// ErrSourceUnavailable wraps failures to open or parse a whole source.
	ErrSourceUnavailable = errors.New("corpus source unavailable")

	// ErrMalformedRecord wraps per-record load failures. Such records are
	// skipped and never abort a load.
	ErrMalformedRecord = errors.New("malformed corpus record")
)

// Key identifies a verse by chapter and verse number.
type Key struct {
	Chapter int
	Verse   int
}

func (k Key) String() string {
	return strconv.Itoa(k.Chapter) + ":" + strconv.Itoa(k.Verse)
}

// ParseKey parses a "chapter:verse" key.
func ParseKey(s string) (Key, error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: key %q has no separator", ErrMalformedRecord, s)
	}
	chapter, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return Key{}, fmt.Errorf("%w: key %q: bad chapter: %v", ErrMalformedRecord, s, err)
	}
	verse, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return Key{}, fmt.Errorf("%w: key %q: bad verse: %v", ErrMalformedRecord, s, err)
	}
	if chapter <= 0 || verse <= 0 {
		return Key{}, fmt.Errorf("%w: key %q out of range", ErrMalformedRecord, s)
	}
	return Key{Chapter: chapter, Verse: verse}, nil
}

// Verse is one corpus record. Normalized is derived once at load time.
type Verse struct {
	Chapter     int    `json:"surah"`
	ChapterName string `json:"surah_name"`
	Number      int    `json:"ayah"`
	Text        string `json:"text"`
	Normalized  string `json:"normalized"`
}

// Key returns the verse's (chapter, verse) key.
func (v Verse) Key() Key {
	return Key{Chapter: v.Chapter, Verse: v.Number}
}

// Stats summarizes a load.
type Stats struct {
	Loaded     int `json:"loaded"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Empty      int `json:"empty"`
}

// Corpus is an immutable, ordered verse table. verses and normalized are
// always the same length and index-aligned. A built Corpus is never mutated,
// so it can be read from any number of goroutines.
type Corpus struct {
	source     Source
	verses     []Verse
	normalized []string
	index      map[Key]int
	stats      Stats
}

// Len returns the number of verses.
func (c *Corpus) Len() int {
	return len(c.verses)
}

// Verse returns the i-th verse in load order.
func (c *Corpus) Verse(i int) Verse {
	return c.verses[i]
}

// Normalized returns the normalized text of the i-th verse.
func (c *Corpus) Normalized(i int) string {
	return c.normalized[i]
}

// Verses returns a copy of the verse list.
func (c *Corpus) Verses() []Verse {
	out := make([]Verse, len(c.verses))
	copy(out, c.verses)
	return out
}

// Lookup finds a verse by key.
func (c *Corpus) Lookup(k Key) (Verse, bool) {
	i, ok := c.index[k]
	if !ok {
		return Verse{}, false
	}
	return c.verses[i], true
}

// Source returns the source the corpus was loaded from.
func (c *Corpus) Source() Source {
	return c.source
}

// Stats returns load statistics.
func (c *Corpus) Stats() Stats {
	return c.stats
}

// Chapters returns the number of distinct chapters.
func (c *Corpus) Chapters() int {
	seen := make(map[int]struct{})
	for _, v := range c.verses {
		seen[v.Chapter] = struct{}{}
	}
	return len(seen)
}

// Require returns ErrEmptyCorpus when c holds no verses. Hosts call it at
// start-up and refuse to serve identification on error.
func Require(c *Corpus) error {
	if c == nil || c.Len() == 0 {
		return ErrEmptyCorpus
	}
	return nil
}
