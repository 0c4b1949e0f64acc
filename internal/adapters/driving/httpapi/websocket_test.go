package httpapi

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTranscribe(t *testing.T, svc Services) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestHandler(t, svc))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/transcribe"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestTranscribe_FullSession(t *testing.T) {
	stt := &fakeTranscription{}
	conn := dialTranscribe(t, Services{Transcription: stt})

	send(t, conn, map[string]string{"type": "connect", "format": "wav"})
	ev := readEvent(t, conn)
	assert.Equal(t, "connected", ev["type"])
	assert.Equal(t, "ready", ev["status"])
	assert.Equal(t, "sess-1", ev["session_id"])

	format, session := stt.last()
	assert.Equal(t, "wav", format)

	send(t, conn, map[string]string{
		"type":     "audio_chunk",
		"audio":    base64.StdEncoding.EncodeToString([]byte("hello ")),
		"language": "en",
	})
	ev = readEvent(t, conn)
	assert.Equal(t, "transcript_update", ev["type"])
	assert.Equal(t, float64(1), ev["chunk"])
	assert.Equal(t, false, ev["is_final"])
	segments := ev["segments"].([]any)
	require.Len(t, segments, 1)
	assert.Equal(t, "hello ", segments[0].(map[string]any)["text"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("world")))
	ev = readEvent(t, conn)
	assert.Equal(t, float64(2), ev["chunk"])

	send(t, conn, map[string]string{"type": "stop_recording"})
	ev = readEvent(t, conn)
	assert.Equal(t, "transcript_final", ev["type"])
	assert.Equal(t, "[Guest-1] hello world", ev["text"])

	assert.Equal(t, []string{"en", ""}, session.pushedLanguages())

	send(t, conn, map[string]string{"type": "disconnect"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestTranscribe_DisconnectWhileFinalizing(t *testing.T) {
	stt := &fakeTranscription{holdFinal: true}
	conn := dialTranscribe(t, Services{Transcription: stt})

	send(t, conn, map[string]string{"type": "connect"})
	assert.Equal(t, "connected", readEvent(t, conn)["type"])
	_, session := stt.last()

	// The final transcript never arrives; disconnect must still be read.
	send(t, conn, map[string]string{"type": "stop_recording"})
	send(t, conn, map[string]string{"type": "disconnect"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, session.isClosed, 5*time.Second, 10*time.Millisecond)
}

func TestTranscribe_Errors(t *testing.T) {
	t.Run("chunk before connect", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{}})

		send(t, conn, map[string]string{"type": "audio_chunk", "audio": "aGk="})
		ev := readEvent(t, conn)
		assert.Equal(t, "error", ev["type"])
		assert.Contains(t, ev["message"], "session not found")
	})

	t.Run("invalid base64", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{}})

		send(t, conn, map[string]string{"type": "connect"})
		readEvent(t, conn)

		send(t, conn, map[string]string{"type": "audio_chunk", "audio": "!!not base64!!"})
		ev := readEvent(t, conn)
		assert.Equal(t, "error", ev["type"])
		assert.Contains(t, ev["message"], "base64")
	})

	t.Run("unknown type keeps the connection open", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{}})

		send(t, conn, map[string]string{"type": "pause"})
		ev := readEvent(t, conn)
		assert.Equal(t, "error", ev["type"])
		assert.Contains(t, ev["message"], `"pause"`)

		send(t, conn, map[string]string{"type": "connect"})
		assert.Equal(t, "connected", readEvent(t, conn)["type"])
	})

	t.Run("malformed json", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{}})

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
		ev := readEvent(t, conn)
		assert.Equal(t, "error", ev["type"])
	})

	t.Run("speech model unavailable", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{unavailable: true}})

		send(t, conn, map[string]string{"type": "connect"})
		ev := readEvent(t, conn)
		assert.Equal(t, "error", ev["type"])
		assert.Contains(t, ev["message"], "speech-to-text")
	})

	t.Run("no transcription service", func(t *testing.T) {
		conn := dialTranscribe(t, Services{})

		send(t, conn, map[string]string{"type": "connect"})
		assert.Equal(t, "error", readEvent(t, conn)["type"])
	})

	t.Run("stop without session", func(t *testing.T) {
		conn := dialTranscribe(t, Services{Transcription: &fakeTranscription{}})

		send(t, conn, map[string]string{"type": "stop_recording"})
		assert.Equal(t, "error", readEvent(t, conn)["type"])
	})
}
