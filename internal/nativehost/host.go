// Package nativehost serves the pipeline to a browser extension over the
// native messaging protocol on stdin and stdout.
package nativehost

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/playback"
)

// Actions understood by the host.
const (
	ActionPing         = "ping"
	ActionProcessAudio = "process_audio"
)

// Request is a message from the extension.
type Request struct {
	Action string `json:"action"`
	Data   string `json:"data,omitempty"` // base64 WAV for process_audio
}

// Response is a message to the extension.
type Response struct {
	OK      bool             `json:"ok"`
	Message string           `json:"message,omitempty"`
	Result  *playback.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Host answers requests one at a time. The extension keeps one pipe open per
// browser, so a host owns a single session.
type Host struct {
	pipeline   *playback.Pipeline
	session    *playback.Session
	sampleRate int
	logger     zerolog.Logger
}

// New creates a host. session may be nil to disable debouncing.
func New(pipeline *playback.Pipeline, session *playback.Session, sampleRate int) *Host {
	return &Host{
		pipeline:   pipeline,
		session:    session,
		sampleRate: sampleRate,
		logger:     log.With().Str("component", "nativehost").Logger(),
	}
}

// Run serves requests from in until EOF or ctx is done. Responses go to out.
func (h *Host) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)

	h.logger.Info().Msg("Native messaging host started")
	defer h.logger.Info().Msg("Native messaging host stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := ReadMessage(reader)
		var resp Response
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrMessageTooLarge):
			h.logger.Warn().Err(err).Msg("Rejected message")
			resp = failure(err.Error())
		case err != nil:
			return fmt.Errorf("read message: %w", err)
		default:
			resp = h.Handle(ctx, payload)
		}

		if err := WriteMessage(writer, resp); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("flush message: %w", err)
		}
	}
}

// Handle answers one encoded request.
func (h *Host) Handle(ctx context.Context, payload []byte) Response {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return failure(fmt.Sprintf("invalid message: %v", err))
	}
	h.logger.Debug().Str("action", req.Action).Msg("Received message")

	switch req.Action {
	case ActionPing:
		return Response{OK: true, Message: "pong"}
	case ActionProcessAudio:
		if req.Data == "" {
			return failure("No audio data provided")
		}
		return h.processAudio(ctx, req.Data)
	default:
		return failure("Unknown action: " + req.Action)
	}
}

func (h *Host) processAudio(ctx context.Context, data string) Response {
	wav, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return failure(fmt.Sprintf("invalid base64 audio: %v", err))
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(wav))
	if err != nil {
		h.logger.Info().Err(err).Msg("Error processing audio")
		return failure(err.Error())
	}
	if err := clip.RequireRate(h.sampleRate); err != nil {
		return failure(err.Error())
	}

	res := h.pipeline.ProcessChunk(ctx, h.session, clip.Samples)
	return Response{OK: true, Result: &res}
}

func failure(msg string) Response {
	return Response{OK: false, Error: msg}
}
