package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/pkg/embedder"
	"github.com/xhad/hybridrag/pkg/ingest"
	"github.com/xhad/hybridrag/pkg/loader"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/server"
	"github.com/xhad/hybridrag/pkg/session"
	"github.com/xhad/hybridrag/pkg/store"
)

type echoChat struct{}

func (echoChat) Generate(context.Context, string) (string, error) { return "", nil }

func (echoChat) Chat(_ context.Context, messages []models.Message) (models.Message, error) {
	return models.Message{Role: models.RoleAssistant, Content: "echo: " + messages[len(messages)-1].Content}, nil
}

type staticAnswerer struct{}

func (staticAnswerer) Answer(_ context.Context, collection, question string) (string, error) {
	return collection + ": " + question, nil
}

type unitClient struct{}

func (unitClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestServer(t *testing.T, withIngest bool) *httptest.Server {
	t.Helper()
	return newTestServerWithConfig(t, server.Config{}, withIngest)
}

func newTestServerWithConfig(t *testing.T, config server.Config, withIngest bool) *httptest.Server {
	t.Helper()
	var in *ingest.Ingestor
	if withIngest {
		proc, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 8})
		require.NoError(t, err)
		emb := embedder.NewWithConfig(unitClient{}, embedder.EmbedderConfig{BatchSize: 2, Dimension: 2})
		in = ingest.NewWithConfig(ingest.IngestorConfig{}, loader.NewRegistry(), proc, emb, store.NewMemoryStore())
	}

	srv := server.NewWSServer(config, func() *session.Session {
		return session.New(echoChat{}, staticAnswerer{})
	}, in)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, msg server.Message) server.Message {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
	return read(t, ws)
}

func read(t *testing.T, ws *websocket.Conn) server.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply server.Message
	require.NoError(t, ws.ReadJSON(&reply))
	return reply
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestAsk(t *testing.T) {
	ws := dial(t, newTestServer(t, false))

	reply := roundTrip(t, ws, server.Message{Type: server.TypeAsk, Content: "hello there"})

	assert.Equal(t, server.TypeResponse, reply.Type)
	assert.Equal(t, "echo: hello there", reply.Content)
}

func TestModeAndCollection(t *testing.T) {
	ws := dial(t, newTestServer(t, false))

	reply := roundTrip(t, ws, server.Message{Type: server.TypeMode, Content: "rag"})
	assert.Equal(t, server.TypeStatus, reply.Type)

	reply = roundTrip(t, ws, server.Message{Type: server.TypeCollection, Content: "manuals"})
	assert.Equal(t, server.TypeStatus, reply.Type)

	reply = roundTrip(t, ws, server.Message{Type: server.TypeAsk, Content: "how?"})
	assert.Equal(t, "manuals: how?", reply.Content)

	reply = roundTrip(t, ws, server.Message{Type: server.TypeCollection, Content: "no spaces allowed"})
	assert.Equal(t, server.TypeError, reply.Type)
}

func TestNewChatAndSelect(t *testing.T) {
	ws := dial(t, newTestServer(t, false))

	reply := roundTrip(t, ws, server.Message{Type: server.TypeNewChat})
	assert.Equal(t, server.TypeStatus, reply.Type)
	assert.Equal(t, session.Greeting, reply.Content)
	data := reply.Data.(map[string]any)
	assert.EqualValues(t, 1, data["current"])

	reply = roundTrip(t, ws, server.Message{Type: server.TypeSelect, Content: "0"})
	assert.Equal(t, server.TypeStatus, reply.Type)

	reply = roundTrip(t, ws, server.Message{Type: server.TypeSelect, Content: "7"})
	assert.Equal(t, server.TypeError, reply.Type)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t, false)
	first, second := dial(t, ts), dial(t, ts)

	roundTrip(t, first, server.Message{Type: server.TypeMode, Content: "rag"})

	reply := roundTrip(t, second, server.Message{Type: server.TypeAsk, Content: "q"})
	assert.Equal(t, "echo: q", reply.Content)
}

func TestUnknownAndInvalidMessages(t *testing.T) {
	ws := dial(t, newTestServer(t, false))

	reply := roundTrip(t, ws, server.Message{Type: "dance"})
	assert.Equal(t, server.TypeError, reply.Type)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, server.TypeError, read(t, ws).Type)

	reply = roundTrip(t, ws, server.Message{Type: server.TypeIngest, Content: "/tmp"})
	assert.Equal(t, server.TypeError, reply.Type, "ingest disabled")
}

func TestOrigin(t *testing.T) {
	ts := newTestServerWithConfig(t, server.Config{AllowedOrigins: []string{"http://app.example"}}, false)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same host", ts.URL, true},
		{"allowed", "http://app.example", true},
		{"foreign", "http://evil.example", false},
		{"foreign port", "http://127.0.0.1:1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}

			ws, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)

			if tt.ok {
				require.NoError(t, err)
				ws.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestIngest_OutsideRootRejected(t *testing.T) {
	root, outside := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("do not read"), 0o644))
	ws := dial(t, newTestServerWithConfig(t, server.Config{IngestRoot: root}, true))

	for _, folder := range []string{outside, "../" + filepath.Base(outside)} {
		reply := roundTrip(t, ws, server.Message{Type: server.TypeIngest, Content: folder})

		assert.Equal(t, server.TypeError, reply.Type, folder)
		assert.Contains(t, reply.Content, server.ErrOutsideIngestRoot.Error())
	}
}

func TestIngest(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("0123456789abcdefghij"), 0o644))
	ws := dial(t, newTestServerWithConfig(t, server.Config{IngestRoot: root}, true))

	reply := roundTrip(t, ws, server.Message{Type: server.TypeIngest, Content: "docs"})
	assert.Equal(t, server.TypeStatus, reply.Type)

	var last server.Message
	for {
		last = read(t, ws)
		if last.Type != server.TypeProgress {
			break
		}
	}

	assert.Equal(t, server.TypeStatus, last.Type)
	data := last.Data.(map[string]any)
	assert.EqualValues(t, 3, data["upserted"])
	assert.Equal(t, true, data["complete"])
}
