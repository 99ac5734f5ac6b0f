package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"scbackend/internal/ident"
)

const bridgeChunkSize = 32 * 1024

// Result is one message from the ASR bridge.
type Result struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

// BridgeClient streams audio to a WebSocket ASR bridge and waits for the
// final result.
type BridgeClient struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		baseURL: strings.TrimSpace(baseURL),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *BridgeClient) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ASR bridge URL is empty")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("audio is empty")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid ASR bridge URL: %w", err)
	}
	q := u.Query()
	q.Set("session_id", ident.New())
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("connect ASR bridge: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for off := 0; off < len(audio); off += bridgeChunkSize {
		end := min(off+bridgeChunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
			return "", fmt.Errorf("push audio: %w", err)
		}
	}
	if err := conn.WriteJSON(map[string]string{"event": "flush"}); err != nil {
		return "", fmt.Errorf("flush audio: %w", err)
	}

	var partial string
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read ASR result: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var res Result
		if err := json.Unmarshal(payload, &res); err != nil {
			continue
		}
		if res.Error != "" {
			return "", fmt.Errorf("ASR bridge: %s", res.Error)
		}
		if !res.IsFinal {
			if t := strings.TrimSpace(res.Text); t != "" {
				partial = t
			}
			continue
		}

		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		text := strings.TrimSpace(res.Text)
		if text == "" {
			text = partial
		}
		if text == "" {
			return "", ErrEmptyTranscript
		}
		return text, nil
	}
}
