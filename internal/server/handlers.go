package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/playback"
)

type processRequest struct {
	StreamID string   `json:"stream_id"`
	Time     *float64 `json:"time"`
}

type streamRequest struct {
	StreamID string `json:"stream_id"`
}

type streamResponse struct {
	StreamID string `json:"stream_id"`
}

// handleProcessChunk identifies the verse in an uploaded WAV chunk.
func (s *Server) handleProcessChunk(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.app.Config.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "chunk too large")
			return
		}
		respondError(w, http.StatusBadRequest, "no file")
		return
	}

	file, _, err := r.FormFile("chunk")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file")
		return
	}
	defer file.Close()

	clip, err := audio.DecodeWAV(file)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected chunk")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := clip.RequireRate(s.app.Config.SampleRate); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.session(r.FormValue("stream"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res := s.app.Pipeline.ProcessChunk(r.Context(), session, clip.Samples)
	respondJSON(w, http.StatusOK, res)
}

// handleProcess identifies the verse around a playback position of the
// loaded waveform.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Time == nil {
		respondError(w, http.StatusBadRequest, "time is required")
		return
	}

	session, err := s.session(req.StreamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := s.app.ProcessPlayback(r.Context(), session, *req.Time)
	if errors.Is(err, app.ErrNoPlayback) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleBeginStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	session, err := s.app.Registry.Begin(req.StreamID)
	if errors.Is(err, playback.ErrSessionExists) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, streamResponse{StreamID: session.ID()})
}

func (s *Server) handleEndStream(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Registry.End(r.PathValue("id")); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(id string) (*playback.Session, error) {
	if id == "" {
		id = defaultSession
	}
	return s.app.Registry.GetOrBegin(id)
}
