// Package playback drives one pass of window selection, silence gating,
// transcription, matching and debouncing for a stream.
package playback

import (
	"encoding/json"
	"time"
)

// Status describes how far a pass got.
type Status string

const (
	StatusOK              Status = "ok" // nothing new: the match repeats the last emission
	StatusEmptyChunk      Status = "empty-chunk"
	StatusNoChunk         Status = "no-chunk"
	StatusSilence         Status = "silence"
	StatusNoTranscription Status = "no-transcription"
	StatusNoMatch         Status = "no-match"
	StatusMatched         Status = "matched"
)

// Result is the outcome of one pass. Verse fields are set only when Status
// is StatusMatched.
type Result struct {
	Status      Status
	Chapter     int
	ChapterName string
	Verse       int
	ArabicText  string
	Confidence  float64
	Exact       bool
	Transcript  string
	ASRTime     time.Duration
	MatchTime   time.Duration
	Timestamp   *float64 // playback position in seconds, for playback-driven passes
}

// Matched reports whether the result carries a verse.
func (r Result) Matched() bool {
	return r.Status == StatusMatched
}

type wireResult struct {
	Status     Status   `json:"status"`
	Surah      *int     `json:"surah"`
	SurahName  *string  `json:"surah_name"`
	Ayah       *int     `json:"ayah"`
	ArabicText *string  `json:"arabic_text"`
	Confidence *float64 `json:"confidence"`
	Transcript *string  `json:"transcript"`
	TT         *float64 `json:"tt"`
	TM         *float64 `json:"tm"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
}

// MarshalJSON writes the result with null for every field the pass did not
// reach. Times are in seconds.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Status:    r.Status,
		Timestamp: r.Timestamp,
	}
	if r.Matched() {
		w.Surah = &r.Chapter
		w.SurahName = &r.ChapterName
		w.Ayah = &r.Verse
		w.ArabicText = &r.ArabicText
		w.Confidence = &r.Confidence
	}
	switch r.Status {
	case StatusNoTranscription, StatusNoMatch, StatusMatched, StatusOK:
		w.Transcript = &r.Transcript
		tt := r.ASRTime.Seconds()
		w.TT = &tt
	}
	switch r.Status {
	case StatusNoMatch, StatusMatched, StatusOK:
		tm := r.MatchTime.Seconds()
		w.TM = &tm
	}
	return json.Marshal(w)
}
