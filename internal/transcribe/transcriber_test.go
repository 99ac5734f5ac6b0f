package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisperClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "voice.m4a", hdr.Filename)
		assert.Equal(t, "RIFF", string(data))
		_, _ = w.Write([]byte(`{"text":" eh I want join the workout leh "}`))
	}))
	defer srv.Close()

	text, err := NewWhisperClient(srv.URL+"/v1", "key", "", time.Second).Transcribe(context.Background(), []byte("RIFF"), "voice.m4a")
	require.NoError(t, err)
	assert.Equal(t, "eh I want join the workout leh", text)
}

func TestWhisperClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "bad") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	_, err := NewWhisperClient(srv.URL, "bad", "", time.Second).Transcribe(context.Background(), []byte("x"), "")
	assert.Error(t, err)

	_, err = NewWhisperClient(srv.URL, "key", "", time.Second).Transcribe(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	_, err = NewWhisperClient(srv.URL, "key", "", time.Second).Transcribe(context.Background(), nil, "")
	assert.Error(t, err)
}

func bridgeServer(t *testing.T, final string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("session_id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		received := 0
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				received += len(payload)
				continue
			}
			if strings.Contains(string(payload), "flush") {
				assert.Equal(t, 40000, received)
				_ = conn.WriteJSON(Result{Text: "walao"})
				_ = conn.WriteJSON(Result{Text: final, IsFinal: true})
			}
		}
	}))
}

func TestBridgeClient(t *testing.T) {
	srv := bridgeServer(t, "walao this uncle cut queue sia")
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	text, err := NewBridgeClient(url).Transcribe(context.Background(), make([]byte, 40000), "")
	require.NoError(t, err)
	assert.Equal(t, "walao this uncle cut queue sia", text)
}

func TestBridgeClientUsesPartialWhenFinalEmpty(t *testing.T) {
	srv := bridgeServer(t, "")
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	text, err := NewBridgeClient(url).Transcribe(context.Background(), make([]byte, 40000), "")
	require.NoError(t, err)
	assert.Equal(t, "walao", text)
}

func TestBridgeClientNotConfigured(t *testing.T) {
	_, err := NewBridgeClient("").Transcribe(context.Background(), []byte("x"), "")
	assert.Error(t, err)
}
