package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/playback"
)

const (
	maxFrameBytes = 1 << 20
	writeTimeout  = 10 * time.Second
)

// controlMessage is a text frame sent by the client.
type controlMessage struct {
	Type string `json:"type"` // "flush" or "reset"
}

// streamMessage is a text frame sent to the client.
type streamMessage struct {
	Seq    uint64           `json:"seq,omitempty"`
	Result *playback.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// liveStream cuts PCM16 frames from one websocket into utterances and
// hands them to a worker.
type liveStream struct {
	conn    *websocket.Conn
	session *playback.Session
	worker  *playback.Worker
	vad     *audio.VADDetector
	buffer  *audio.RingBuffer
	rate    int
	logger  zerolog.Logger

	carry     []float32 // samples short of a full VAD frame
	utterance int       // samples in the running utterance
	maxLen    int       // samples after which a running utterance is cut

	writeMu sync.Mutex
}

// handleStream serves GET /ws/stream. The optional "stream" query parameter
// names the session; it must not already be open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	session, err := s.app.Registry.Begin(r.URL.Query().Get("stream"))
	if errors.Is(err, playback.ErrSessionExists) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer s.app.Registry.End(session.ID())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := session.Logger()
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ls := newLiveStream(conn, session, s.app.Config.SampleRate, app.VADConfig(s.app.Config))
	ls.worker = playback.NewWorker(ctx, session,
		func(ctx context.Context, job playback.Job) playback.Result {
			return s.app.Pipeline.ProcessChunk(ctx, session, job.Samples)
		},
		ls.deliver,
	)
	ls.logger.Info().Msg("Stream connected")

	ls.readLoop()
	ls.worker.Close()
	ls.logger.Info().
		Int64("dropped", ls.worker.Dropped()).
		Int("emitted", session.Emitted()).
		Msg("Stream disconnected")
}

func newLiveStream(conn *websocket.Conn, session *playback.Session, rate int, vadCfg *audio.VADConfig) *liveStream {
	maxLen := int(vadCfg.MaxUtterance * float64(rate))
	if maxLen < vadCfg.FrameSize {
		maxLen = vadCfg.FrameSize
	}
	return &liveStream{
		conn:    conn,
		session: session,
		vad:     audio.NewVADDetector(vadCfg),
		buffer:  audio.NewRingBuffer(maxLen),
		rate:    rate,
		logger:  session.Logger(),
		maxLen:  maxLen,
	}
}

func (ls *liveStream) readLoop() {
	ls.conn.SetReadLimit(maxFrameBytes)
	for {
		kind, data, err := ls.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ls.logger.Warn().Err(err).Msg("Stream read failed")
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := ls.handleAudio(data); err != nil {
				ls.send(streamMessage{Error: err.Error()})
			}
		case websocket.TextMessage:
			ls.handleControl(data)
		}
	}
}

func (ls *liveStream) handleAudio(data []byte) error {
	samples, err := audio.PCM16ToFloat32(data)
	if err != nil {
		return err
	}
	ls.session.Metrics().RecordAudio("received", audio.DurationOf(len(samples), ls.rate).Seconds())

	frameSize := ls.vad.Config().FrameSize
	ls.carry = append(ls.carry, samples...)
	for len(ls.carry) >= frameSize {
		ls.processFrame(ls.carry[:frameSize])
		ls.carry = ls.carry[frameSize:]
	}
	// Keep the remainder off the shared backing array.
	ls.carry = append([]float32(nil), ls.carry...)
	return nil
}

func (ls *liveStream) processFrame(frame []float32) {
	speaking, started, ended := ls.vad.ProcessFrame(frame)
	if started {
		ls.buffer.Clear()
		ls.utterance = 0
	}
	if !speaking && !ended {
		return
	}

	ls.buffer.Write(frame)
	ls.utterance += len(frame)

	switch {
	case ended:
		ls.flush()
	case ls.utterance >= ls.maxLen:
		ls.flush()
	}
}

// flush submits the buffered utterance, if any.
func (ls *liveStream) flush() {
	samples := ls.buffer.Snapshot()
	ls.buffer.Clear()
	ls.utterance = 0
	if len(samples) == 0 {
		return
	}
	ls.worker.Submit(playback.Job{Samples: samples})
}

func (ls *liveStream) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ls.send(streamMessage{Error: "invalid control message"})
		return
	}
	switch msg.Type {
	case "flush":
		ls.flush()
	case "reset":
		ls.vad.Reset()
		ls.buffer.Clear()
		ls.utterance = 0
		ls.carry = nil
		ls.session.Reset()
	default:
		ls.send(streamMessage{Error: "unknown control message: " + msg.Type})
	}
}

func (ls *liveStream) deliver(job playback.Job, res playback.Result) {
	ls.send(streamMessage{Seq: job.Seq, Result: &res})
}

func (ls *liveStream) send(msg streamMessage) {
	ls.writeMu.Lock()
	defer ls.writeMu.Unlock()

	ls.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ls.conn.WriteJSON(msg); err != nil {
		ls.logger.Debug().Err(err).Msg("Failed to write stream message")
	}
}
