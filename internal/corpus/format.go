package corpus

import (
	"fmt"
	"os"
	"strings"
)

// Format selects how a source is read.
type Format int

const (
	// FormatAuto picks a format from the path.
	FormatAuto Format = iota
	// FormatKeyValue is a JSON object of "chapter:verse" -> {"text": ...}.
	FormatKeyValue
	// FormatVerseTable is an sqlite table with one row per verse.
	FormatVerseTable
	// FormatWordTable is an sqlite table with one row per word.
	FormatWordTable
	// FormatChapterDir is a directory of per-chapter JSON files.
	FormatChapterDir
)

var formatNames = map[Format]string{
	FormatAuto:       "auto",
	FormatKeyValue:   "json",
	FormatVerseTable: "verse-table",
	FormatWordTable:  "word-table",
	FormatChapterDir: "chapter-dir",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat parses a format name. The sqlite formats also accept the
// "aba" and "wbw" file suffix names.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json", "key-value", "kv":
		return FormatKeyValue, nil
	case "verse-table", "verses", "aba":
		return FormatVerseTable, nil
	case "word-table", "words", "wbw":
		return FormatWordTable, nil
	case "chapter-dir", "dir":
		return FormatChapterDir, nil
	}
	return FormatAuto, fmt.Errorf("unknown corpus format %q", s)
}

// Detect resolves FormatAuto for path. Directories are chapter dirs,
// files ending in "aba.db" are verse tables, "wbw.db" word tables, and
// everything else is key-value JSON.
func Detect(path string) Format {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FormatChapterDir
	}
	switch {
	case strings.HasSuffix(path, "aba.db"):
		return FormatVerseTable
	case strings.HasSuffix(path, "wbw.db"):
		return FormatWordTable
	}
	return FormatKeyValue
}

// Source names where a corpus comes from.
type Source struct {
	Path   string
	Format Format
}

// Resolved returns s with FormatAuto replaced by the detected format.
func (s Source) Resolved() Source {
	if s.Format == FormatAuto {
		s.Format = Detect(s.Path)
	}
	return s
}

func (s Source) String() string {
	return s.Path + " (" + s.Format.String() + ")"
}
