package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// Client-to-server message types of the transcription protocol.
const (
	msgConnect       = "connect"
	msgAudioChunk    = "audio_chunk"
	msgStopRecording = "stop_recording"
	msgDisconnect    = "disconnect"
)

const (
	// maxWSMessage bounds one client frame (base64 audio included).
	maxWSMessage = 32 << 20

	writeWait = 10 * time.Second
)

// clientMessage is one client frame. Binary frames carry raw audio and are
// treated as audio_chunk messages without a language hint.
type clientMessage struct {
	Type     string `json:"type"`
	Audio    string `json:"audio,omitempty"`
	Language string `json:"language,omitempty"`

	// Format names the audio container on connect (e.g. "webm", "wav").
	Format string `json:"format,omitempty"`
}

// wsConn serialises writes to a websocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(ev domain.TranscriptEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

func (c *wsConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// transcribeConn is the per-connection protocol state. At most one live
// session is open at a time; a stopped session keeps forwarding events
// until its final transcript while the read loop stays responsive.
type transcribeConn struct {
	ctx      context.Context
	svc      driving.TranscriptionService
	ws       *wsConn
	session  driving.LiveSession
	stopping driving.LiveSession
	pumped   sync.WaitGroup
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Debug("websocket upgrade: %v", err)
		return
	}
	conn.SetReadLimit(maxWSMessage)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	tc := &transcribeConn{ctx: ctx, svc: s.svc.Transcription, ws: &wsConn{conn: conn}}
	defer tc.release()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read: %v", err)
			}
			return
		}

		var msg clientMessage
		if kind == websocket.BinaryMessage {
			msg = clientMessage{Type: msgAudioChunk}
		} else if err := json.Unmarshal(data, &msg); err != nil {
			tc.fail(fmt.Errorf("malformed message: %w", domain.ErrInvalidInput))
			continue
		}

		if !tc.handle(msg, data, kind == websocket.BinaryMessage) {
			tc.ws.close(websocket.CloseNormalClosure, "disconnected")
			return
		}
	}
}

// handle processes one client message. It returns false on disconnect.
func (tc *transcribeConn) handle(msg clientMessage, raw []byte, binary bool) bool {
	switch msg.Type {
	case msgConnect:
		tc.connect(msg.Format)
	case msgAudioChunk:
		audio := raw
		if !binary {
			var err error
			audio, err = base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				tc.fail(fmt.Errorf("audio is not valid base64: %w", domain.ErrInvalidInput))
				return true
			}
		}
		if tc.session == nil {
			tc.fail(fmt.Errorf("no open session, send connect first: %w", domain.ErrSessionNotFound))
			return true
		}
		if err := tc.session.Push(audio, msg.Language); err != nil {
			tc.fail(err)
		}
	case msgStopRecording:
		if tc.session == nil {
			tc.fail(fmt.Errorf("no open session: %w", domain.ErrSessionNotFound))
			return true
		}
		if err := tc.session.Stop(); err != nil {
			tc.fail(err)
			return true
		}
		// The pump forwards the final event and then exits.
		tc.stopping, tc.session = tc.session, nil
	case msgDisconnect:
		return false
	default:
		tc.fail(fmt.Errorf("unknown message type %q: %w", msg.Type, domain.ErrInvalidInput))
	}
	return true
}

func (tc *transcribeConn) connect(format string) {
	if tc.svc == nil || !tc.svc.Available() {
		tc.fail(domain.ErrSTTUnavailable)
		return
	}
	// A stopped session delivers its final transcript before the next
	// session is announced.
	if tc.stopping != nil {
		tc.pumped.Wait()
		tc.stopping = nil
	}
	tc.release()

	session, err := tc.svc.Start(tc.ctx, format)
	if err != nil {
		tc.fail(err)
		return
	}
	tc.session = session
	logger.Debug("Transcription session %s opened", session.ID())

	if err := tc.ws.send(domain.NewConnectedEvent(session.ID())); err != nil {
		logger.Debug("websocket write: %v", err)
	}

	tc.pumped.Add(1)
	go func() {
		defer tc.pumped.Done()
		for ev := range session.Events() {
			if err := tc.ws.send(ev); err != nil {
				logger.Debug("websocket write: %v", err)
				session.Close()
			}
		}
	}()
}

// release abandons the open and stopping sessions, if any, and waits for
// their pump.
func (tc *transcribeConn) release() {
	if tc.session != nil {
		tc.session.Close()
		tc.session = nil
	}
	if tc.stopping != nil {
		tc.stopping.Close()
		tc.stopping = nil
	}
	tc.pumped.Wait()
}

func (tc *transcribeConn) fail(err error) {
	if !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrSessionNotFound) {
		logger.Warn("transcription: %v", err)
	}
	if werr := tc.ws.send(domain.NewErrorEvent(err)); werr != nil {
		logger.Debug("websocket write: %v", werr)
	}
}
