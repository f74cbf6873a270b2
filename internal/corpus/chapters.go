package corpus

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed chapters.yaml
var chaptersYAML []byte

// ChapterCount is the number of chapters in the scripture.
const ChapterCount = 114

type chapterTable struct {
	Chapters []struct {
		Number int    `yaml:"number"`
		Name   string `yaml:"name"`
	} `yaml:"chapters"`
}

var (
	chapterOnce  sync.Once
	chapterNames map[int]string
	chapterErr   error
)

func loadChapterNames() {
	var table chapterTable
	if err := yaml.Unmarshal(chaptersYAML, &table); err != nil {
		chapterErr = fmt.Errorf("parse chapter table: %w", err)
		chapterNames = map[int]string{}
		return
	}
	chapterNames = make(map[int]string, len(table.Chapters))
	for _, c := range table.Chapters {
		chapterNames[c.Number] = c.Name
	}
}

// ChapterName returns the display name of chapter n, or "Surah n" when the
// number is unknown.
func ChapterName(n int) string {
	chapterOnce.Do(loadChapterNames)
	if name, ok := chapterNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Surah %d", n)
}

// ChapterTableErr reports a failure to parse the embedded chapter table.
func ChapterTableErr() error {
	chapterOnce.Do(loadChapterNames)
	return chapterErr
}
