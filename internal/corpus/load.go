package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/quranlocator/verse-engine/internal/textnorm"
)

const (
	verseTableQuery = "SELECT verse_key, surah, ayah, text FROM verses ORDER BY surah, ayah"
	wordTableQuery  = "SELECT surah, ayah, word, text FROM words ORDER BY surah, ayah, word"
)

// Option configures a load.
type Option func(*loadConfig)

type loadConfig struct {
	normalizer *textnorm.Normalizer
	logger     zerolog.Logger
}

// WithNormalizer sets the normalizer applied to every verse.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(c *loadConfig) {
		c.normalizer = n
	}
}

// WithLogger sets the logger that receives per-record diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *loadConfig) {
		c.logger = l
	}
}

// builder appends verses and their normalized text together so the two
// slices can never drift apart.
type builder struct {
	corpus     *Corpus
	normalizer *textnorm.Normalizer
	logger     zerolog.Logger
}

func newBuilder(src Source, cfg loadConfig) *builder {
	return &builder{
		corpus: &Corpus{
			source: src,
			index:  make(map[Key]int),
		},
		normalizer: cfg.normalizer,
		logger:     cfg.logger,
	}
}

func (b *builder) add(chapter int, chapterName string, number int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		b.skip(fmt.Errorf("%w: %d:%d has no text", ErrMalformedRecord, chapter, number))
		return
	}

	key := Key{Chapter: chapter, Verse: number}
	if _, exists := b.corpus.index[key]; exists {
		b.corpus.stats.Duplicates++
		b.logger.Warn().Str("key", key.String()).Msg("Skipping duplicate verse")
		return
	}

	normalized := b.normalizer.Normalize(text)
	if normalized == "" {
		b.corpus.stats.Empty++
		b.logger.Debug().Str("key", key.String()).Msg("Dropping verse with empty normalized text")
		return
	}

	if chapterName == "" {
		chapterName = ChapterName(chapter)
	}

	b.corpus.index[key] = len(b.corpus.verses)
	b.corpus.verses = append(b.corpus.verses, Verse{
		Chapter:     chapter,
		ChapterName: chapterName,
		Number:      number,
		Text:        text,
		Normalized:  normalized,
	})
	b.corpus.normalized = append(b.corpus.normalized, normalized)
	b.corpus.stats.Loaded++
}

func (b *builder) skip(err error) {
	b.corpus.stats.Skipped++
	b.logger.Warn().Err(err).Msg("Skipping corpus record")
}

// Load reads a corpus from src. Bad records are skipped and logged. When the
// source as a whole cannot be read, Load returns an empty, usable corpus
// together with an error wrapping ErrSourceUnavailable.
func Load(ctx context.Context, src Source, opts ...Option) (*Corpus, error) {
	cfg := loadConfig{logger: log.Logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.normalizer == nil {
		cfg.normalizer = textnorm.Default()
	}

	src = src.Resolved()
	logger := cfg.logger.With().Str("path", src.Path).Str("format", src.Format.String()).Logger()
	cfg.logger = logger
	b := newBuilder(src, cfg)

	var err error
	switch src.Format {
	case FormatKeyValue:
		err = b.loadKeyValue(src.Path)
	case FormatVerseTable:
		err = b.loadVerseTable(ctx, src.Path)
	case FormatWordTable:
		err = b.loadWordTable(ctx, src.Path)
	case FormatChapterDir:
		err = b.loadChapterDir(src.Path)
	default:
		err = fmt.Errorf("unsupported format %s", src.Format)
	}

	stats := b.corpus.stats
	if err != nil {
		logger.Error().Err(err).Int("loaded", stats.Loaded).Msg("Failed to read corpus source")
		return b.corpus, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.Path, err)
	}

	logger.Info().
		Int("loaded", stats.Loaded).
		Int("skipped", stats.Skipped).
		Int("duplicates", stats.Duplicates).
		Int("empty", stats.Empty).
		Msg("Corpus loaded")
	return b.corpus, nil
}

func (b *builder) loadKeyValue(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	type entry struct {
		key Key
		raw json.RawMessage
	}
	entries := make([]entry, 0, len(raw))
	for k, v := range raw {
		key, err := ParseKey(k)
		if err != nil {
			b.skip(err)
			continue
		}
		entries = append(entries, entry{key: key, raw: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key.Chapter != entries[j].key.Chapter {
			return entries[i].key.Chapter < entries[j].key.Chapter
		}
		return entries[i].key.Verse < entries[j].key.Verse
	})

	for _, e := range entries {
		var record struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(e.raw, &record); err != nil {
			b.skip(fmt.Errorf("%w: %s: %v", ErrMalformedRecord, e.key, err))
			continue
		}
		b.add(e.key.Chapter, "", e.key.Verse, record.Text)
	}
	return nil
}

func openSQLite(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func (b *builder) loadVerseTable(ctx context.Context, path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, verseTableQuery)
	if err != nil {
		return fmt.Errorf("query verses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			verseKey sql.NullString
			chapter  sql.NullInt64
			number   sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&verseKey, &chapter, &number, &text); err != nil {
			b.skip(fmt.Errorf("%w: scan verse row: %v", ErrMalformedRecord, err))
			continue
		}
		if !chapter.Valid || !number.Valid {
			b.skip(fmt.Errorf("%w: verse row %q has no surah/ayah", ErrMalformedRecord, verseKey.String))
			continue
		}
		b.add(int(chapter.Int64), "", int(number.Int64), text.String)
	}
	return rows.Err()
}

func (b *builder) loadWordTable(ctx context.Context, path string) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, wordTableQuery)
	if err != nil {
		return fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()

	var (
		current Key
		started bool
		words   []string
	)
	flush := func() {
		if started {
			b.add(current.Chapter, "", current.Verse, strings.Join(words, " "))
		}
		words = words[:0]
	}

	for rows.Next() {
		var (
			chapter sql.NullInt64
			number  sql.NullInt64
			wordIdx sql.NullInt64
			text    sql.NullString
		)
		if err := rows.Scan(&chapter, &number, &wordIdx, &text); err != nil {
			b.skip(fmt.Errorf("%w: scan word row: %v", ErrMalformedRecord, err))
			continue
		}
		if !chapter.Valid || !number.Valid {
			b.skip(fmt.Errorf("%w: word row %d has no surah/ayah", ErrMalformedRecord, wordIdx.Int64))
			continue
		}

		key := Key{Chapter: int(chapter.Int64), Verse: int(number.Int64)}
		if started && key != current {
			flush()
		}
		current = key
		started = true

		if w := strings.TrimSpace(text.String); w != "" {
			words = append(words, w)
		}
	}
	if err := rows.Err(); err != nil {
		flush()
		return err
	}
	flush()
	return nil
}

// chapterFile is the older per-chapter JSON layout.
type chapterFile struct {
	Number      int    `json:"number"`
	EnglishName string `json:"englishName"`
	Ayahs       []struct {
		Text string `json:"text"`
	} `json:"ayahs"`
}

func (b *builder) loadChapterDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no chapter files in %s", dir)
	}
	sort.Strings(paths)

	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			b.skip(fmt.Errorf("%w: %s: %v", ErrMalformedRecord, filepath.Base(p), err))
			continue
		}
		var file chapterFile
		if err := json.Unmarshal(data, &file); err != nil {
			b.skip(fmt.Errorf("%w: %s: %v", ErrMalformedRecord, filepath.Base(p), err))
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		chapter := file.Number
		if chapter <= 0 {
			if n, err := strconv.Atoi(stem); err == nil && n > 0 {
				chapter = n
			} else {
				chapter = i + 1
			}
		}
		name := file.EnglishName
		if name == "" {
			name = stem
		}

		for idx, ayah := range file.Ayahs {
			b.add(chapter, name, idx+1, ayah.Text)
		}
	}
	return nil
}

// Record is an unnormalized verse handed to Build.
type Record struct {
	Chapter     int
	ChapterName string
	Number      int
	Text        string
}

// Build creates a corpus from in-memory records, applying the same
// filtering and normalization as Load.
func Build(records []Record, opts ...Option) *Corpus {
	cfg := loadConfig{logger: log.Logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.normalizer == nil {
		cfg.normalizer = textnorm.Default()
	}

	b := newBuilder(Source{Path: "memory"}, cfg)
	for _, r := range records {
		b.add(r.Chapter, r.ChapterName, r.Number, r.Text)
	}
	return b.corpus
}

// IsSourceError reports whether err came from an unreadable source.
func IsSourceError(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}
