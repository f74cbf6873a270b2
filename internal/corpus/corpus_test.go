package corpus

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func quietLoad(t *testing.T, src Source) (*Corpus, error) {
	t.Helper()
	return Load(context.Background(), src, WithLogger(zerolog.Nop()))
}

func assertAligned(t *testing.T, c *Corpus) {
	t.Helper()
	if len(c.verses) != len(c.normalized) {
		t.Fatalf("Expected verses and normalized index to be aligned, got %d and %d", len(c.verses), len(c.normalized))
	}
	for i := range c.verses {
		if c.verses[i].Normalized != c.normalized[i] {
			t.Errorf("Index %d misaligned: %q vs %q", i, c.verses[i].Normalized, c.normalized[i])
		}
		if c.normalized[i] == "" {
			t.Errorf("Index %d has empty normalized text", i)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "1:1", want: Key{1, 1}},
		{in: "114:6", want: Key{114, 6}},
		{in: " 2 : 255 ", want: Key{2, 255}},
		{in: "1", wantErr: true},
		{in: "a:1", wantErr: true},
		{in: "1:b", wantErr: true},
		{in: "0:1", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKey(%q): expected error", tt.in)
			} else if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("ParseKey(%q): expected ErrMalformedRecord, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKey(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestLoad_KeyValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "uthmani.json", `{
		"1:2": {"text": "ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَٰلَمِينَ"},
		"1:1": {"text": "بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ", "id": 1},
		"bad-key": {"text": "ignored"},
		"1:3": {"text": "   "},
		"1:4": "not an object",
		"1:5": {"text": "۝"},
		"2:1": {"text": "الٓمٓ"}
	}`)

	c, err := quietLoad(t, Source{Path: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertAligned(t, c)

	if c.Source().Format != FormatKeyValue {
		t.Errorf("Expected key-value format, got %s", c.Source().Format)
	}
	if c.Len() != 3 {
		t.Fatalf("Expected 3 verses, got %d", c.Len())
	}

	wantOrder := []Key{{1, 1}, {1, 2}, {2, 1}}
	for i, k := range wantOrder {
		if got := c.Verse(i).Key(); got != k {
			t.Errorf("Index %d: expected %v, got %v", i, k, got)
		}
	}

	first := c.Verse(0)
	if first.Normalized != "بسم الله الرحمن الرحيم" {
		t.Errorf("Expected normalized bismillah, got %q", first.Normalized)
	}
	if first.ChapterName != "Al-Fātiḥah" {
		t.Errorf("Expected chapter name 'Al-Fātiḥah', got %q", first.ChapterName)
	}

	stats := c.Stats()
	if stats.Skipped != 3 {
		t.Errorf("Expected 3 skipped records, got %d", stats.Skipped)
	}
	if stats.Empty != 1 {
		t.Errorf("Expected 1 record dropped for empty normalized text, got %d", stats.Empty)
	}

	if _, ok := c.Lookup(Key{1, 2}); !ok {
		t.Error("Expected lookup of 1:2 to succeed")
	}
	if _, ok := c.Lookup(Key{1, 5}); ok {
		t.Error("Expected 1:5 to be absent")
	}
}

func TestLoad_MissingSourceYieldsEmptyCorpus(t *testing.T) {
	c, err := quietLoad(t, Source{Path: filepath.Join(t.TempDir(), "missing.json")})
	if err == nil {
		t.Fatal("Expected error for missing source")
	}
	if !IsSourceError(err) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", err)
	}
	if c == nil {
		t.Fatal("Expected non-nil empty corpus")
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty corpus, got %d verses", c.Len())
	}
	if !errors.Is(Require(c), ErrEmptyCorpus) {
		t.Error("Expected Require to report ErrEmptyCorpus")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.json", `{"1:1": `)
	c, err := quietLoad(t, Source{Path: path})
	if err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty corpus, got %d", c.Len())
	}
}

func createDB(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to exec %q: %v", stmt, err)
		}
	}
}

func TestLoad_VerseTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uthmani-aba.db")
	createDB(t, path,
		`CREATE TABLE verses (id INTEGER PRIMARY KEY, verse_key TEXT, surah INTEGER, ayah INTEGER, text TEXT)`,
		`INSERT INTO verses (verse_key, surah, ayah, text) VALUES ('1:2', 1, 2, 'ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَٰلَمِينَ')`,
		`INSERT INTO verses (verse_key, surah, ayah, text) VALUES ('1:1', 1, 1, 'بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ')`,
		`INSERT INTO verses (verse_key, surah, ayah, text) VALUES ('1:3', 1, 3, NULL)`,
		`INSERT INTO verses (verse_key, surah, ayah, text) VALUES ('112:1', 112, 1, 'قُلْ هُوَ ٱللَّهُ أَحَدٌ')`,
	)

	c, err := quietLoad(t, Source{Path: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertAligned(t, c)

	if c.Source().Format != FormatVerseTable {
		t.Errorf("Expected verse-table format, got %s", c.Source().Format)
	}
	if c.Len() != 3 {
		t.Fatalf("Expected 3 verses, got %d", c.Len())
	}
	if c.Verse(0).Key() != (Key{1, 1}) || c.Verse(1).Key() != (Key{1, 2}) || c.Verse(2).Key() != (Key{112, 1}) {
		t.Errorf("Expected chapter-then-verse order, got %v %v %v", c.Verse(0).Key(), c.Verse(1).Key(), c.Verse(2).Key())
	}
	if c.Stats().Skipped != 1 {
		t.Errorf("Expected 1 skipped row, got %d", c.Stats().Skipped)
	}
	if c.Verse(2).ChapterName != "Al-Ikhlāṣ" {
		t.Errorf("Expected 'Al-Ikhlāṣ', got %q", c.Verse(2).ChapterName)
	}
}

func TestLoad_VerseTableMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty-aba.db")
	createDB(t, path, `CREATE TABLE other (x INTEGER)`)

	c, err := quietLoad(t, Source{Path: path})
	if err == nil {
		t.Fatal("Expected error when verses table is missing")
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty corpus, got %d", c.Len())
	}
}

func TestLoad_WordTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uthmani-wbw.db")
	createDB(t, path,
		`CREATE TABLE words (id INTEGER PRIMARY KEY, surah INTEGER, ayah INTEGER, word INTEGER, text TEXT)`,
		// inserted out of order; the query orders by surah, ayah, word
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 1, 2, 'ٱللَّهِ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 1, 1, 'بِسْمِ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 1, 4, 'ٱلرَّحِيمِ ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 1, 3, ' ٱلرَّحْمَٰنِ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 1, 5, '١')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 2, 1, 'ٱلْحَمْدُ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (1, 2, 2, 'لِلَّهِ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (112, 1, 1, 'قُلْ')`,
		`INSERT INTO words (surah, ayah, word, text) VALUES (112, 1, 2, 'هُوَ')`,
	)

	c, err := quietLoad(t, Source{Path: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertAligned(t, c)

	if c.Len() != 3 {
		t.Fatalf("Expected 3 verses, got %d", c.Len())
	}

	want := []struct {
		key  Key
		norm string
	}{
		{Key{1, 1}, "بسم الله الرحمن الرحيم"},
		{Key{1, 2}, "الحمد لله"},
		{Key{112, 1}, "قل هو"},
	}
	for i, w := range want {
		v := c.Verse(i)
		if v.Key() != w.key {
			t.Errorf("Index %d: expected key %v, got %v", i, w.key, v.Key())
		}
		if v.Normalized != w.norm {
			t.Errorf("Index %d: expected %q, got %q", i, w.norm, v.Normalized)
		}
	}
	if got := c.Verse(0).Text; got != "بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ ١" {
		t.Errorf("Expected words joined with single spaces, got %q", got)
	}
}

func TestLoad_WordAndVerseTablesAgree(t *testing.T) {
	dir := t.TempDir()
	aba := filepath.Join(dir, "x-aba.db")
	wbw := filepath.Join(dir, "x-wbw.db")
	createDB(t, aba,
		`CREATE TABLE verses (verse_key TEXT, surah INTEGER, ayah INTEGER, text TEXT)`,
		`INSERT INTO verses VALUES ('1:1', 1, 1, 'بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ')`,
		`INSERT INTO verses VALUES ('1:2', 1, 2, 'ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَٰلَمِينَ')`,
	)
	createDB(t, wbw,
		`CREATE TABLE words (surah INTEGER, ayah INTEGER, word INTEGER, text TEXT)`,
		`INSERT INTO words VALUES (1, 1, 1, 'بِسْمِ'), (1, 1, 2, 'ٱللَّهِ'), (1, 1, 3, 'ٱلرَّحْمَٰنِ'), (1, 1, 4, 'ٱلرَّحِيمِ')`,
		`INSERT INTO words VALUES (1, 2, 1, 'ٱلْحَمْدُ'), (1, 2, 2, 'لِلَّهِ'), (1, 2, 3, 'رَبِّ'), (1, 2, 4, 'ٱلْعَٰلَمِينَ')`,
	)

	a, err := quietLoad(t, Source{Path: aba})
	if err != nil {
		t.Fatalf("Failed to load verse table: %v", err)
	}
	b, err := quietLoad(t, Source{Path: wbw})
	if err != nil {
		t.Fatalf("Failed to load word table: %v", err)
	}

	cmp := Compare(a, b)
	if cmp.Total != 2 || cmp.Matches != 2 {
		t.Errorf("Expected 2/2 matches, got %d/%d", cmp.Matches, cmp.Total)
	}
	if cmp.Rate() != 1.0 {
		t.Errorf("Expected rate 1.0, got %f", cmp.Rate())
	}
}

func TestLoad_ChapterDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001.json", `{"englishName": "Al-Faatiha", "ayahs": [
		{"text": "بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ"},
		{"text": ""},
		{"text": "ٱلرَّحْمَٰنِ ٱلرَّحِيمِ"}
	]}`)
	writeFile(t, dir, "112.json", `{"ayahs": [{"text": "قُلْ هُوَ ٱللَّهُ أَحَدٌ"}]}`)
	writeFile(t, dir, "broken.json", `{`)

	c, err := quietLoad(t, Source{Path: dir})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertAligned(t, c)

	if c.Source().Format != FormatChapterDir {
		t.Errorf("Expected chapter-dir format, got %s", c.Source().Format)
	}
	if c.Len() != 3 {
		t.Fatalf("Expected 3 verses, got %d", c.Len())
	}
	if v := c.Verse(1); v.Key() != (Key{1, 3}) || v.ChapterName != "Al-Faatiha" {
		t.Errorf("Expected 1:3 from Al-Faatiha, got %v from %q", v.Key(), v.ChapterName)
	}
	if v := c.Verse(2); v.Key() != (Key{112, 1}) || v.ChapterName != "112" {
		t.Errorf("Expected 112:1 named by file stem, got %v %q", v.Key(), v.ChapterName)
	}
	if c.Stats().Skipped != 2 {
		t.Errorf("Expected 2 skipped records, got %d", c.Stats().Skipped)
	}
}

func TestLoad_DuplicateKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup-aba.db")
	createDB(t, path,
		`CREATE TABLE verses (verse_key TEXT, surah INTEGER, ayah INTEGER, text TEXT)`,
		`INSERT INTO verses VALUES ('1:1', 1, 1, 'بسم الله'), ('1:1', 1, 1, 'مكرر')`,
	)
	c, err := quietLoad(t, Source{Path: path})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 verse, got %d", c.Len())
	}
	if c.Stats().Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", c.Stats().Duplicates)
	}
}

func TestDetectAndParseFormat(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		path string
		want Format
	}{
		{dir, FormatChapterDir},
		{"scripts/uthmani-aba.db", FormatVerseTable},
		{"scripts/uthmani-wbw.db", FormatWordTable},
		{"scripts/uthmani.json", FormatKeyValue},
		{"scripts/other.db", FormatKeyValue},
	}
	for _, tt := range tests {
		if got := Detect(tt.path); got != tt.want {
			t.Errorf("Detect(%q): expected %s, got %s", tt.path, tt.want, got)
		}
	}

	for _, name := range []string{"auto", "json", "verse-table", "word-table", "chapter-dir", "aba", "wbw"} {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q): unexpected error %v", name, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestChapterName(t *testing.T) {
	if err := ChapterTableErr(); err != nil {
		t.Fatalf("Expected chapter table to parse, got %v", err)
	}
	if got := ChapterName(1); got != "Al-Fātiḥah" {
		t.Errorf("Expected 'Al-Fātiḥah', got %q", got)
	}
	if got := ChapterName(114); got != "An-Nās" {
		t.Errorf("Expected 'An-Nās', got %q", got)
	}
	if got := ChapterName(200); got != "Surah 200" {
		t.Errorf("Expected fallback 'Surah 200', got %q", got)
	}
	for n := 1; n <= ChapterCount; n++ {
		if ChapterName(n) == "" {
			t.Errorf("Chapter %d has no name", n)
		}
	}
}

func TestCodePointDiff(t *testing.T) {
	ops := CodePointDiff("بسم الله", "بسم اللة")
	if len(ops) != 1 {
		t.Fatalf("Expected 1 op, got %d: %+v", len(ops), ops)
	}
	op := ops[0]
	if op.Kind != OpReplace || op.A1 != 7 || op.A2 != 8 || string(op.A) != "ه" || string(op.B) != "ة" {
		t.Errorf("Unexpected op %+v", op)
	}

	ops = CodePointDiff("abc", "abxc")
	if len(ops) != 1 || ops[0].Kind != OpInsert || string(ops[0].B) != "x" {
		t.Errorf("Expected single insert of 'x', got %+v", ops)
	}

	ops = CodePointDiff("abxc", "abc")
	if len(ops) != 1 || ops[0].Kind != OpDelete || string(ops[0].A) != "x" {
		t.Errorf("Expected single delete of 'x', got %+v", ops)
	}

	if ops := CodePointDiff("same", "same"); ops != nil {
		t.Errorf("Expected no ops for equal strings, got %+v", ops)
	}
}

func TestDescribeRune(t *testing.T) {
	got := DescribeRune('ة')
	want := `'ة' U+0629 ARABIC LETTER TEH MARBUTA`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
