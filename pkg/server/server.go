// Package server exposes sessions over a JSON websocket protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phuslu/log"

	"github.com/xhad/hybridrag/pkg/ingest"
	"github.com/xhad/hybridrag/pkg/session"
)

// Message types.
const (
	TypeAsk        = "ask"
	TypeMode       = "mode"
	TypeNewChat    = "new_chat"
	TypeSelect     = "select"
	TypeCollection = "collection"
	TypeIngest     = "ingest"

	TypeResponse = "response"
	TypeStatus   = "status"
	TypeProgress = "progress"
	TypeError    = "error"
)

var ErrOutsideIngestRoot = errors.New("folder is outside the ingest root")

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type Config struct {
	Addr string
	// AllowedOrigins lists browser origins accepted besides the server's
	// own host.
	AllowedOrigins []string
	// IngestRoot confines ingest requests to folders below it. Empty
	// means no restriction.
	IngestRoot string
}

// WSServer gives every connection its own session.
type WSServer struct {
	config     Config
	upgrader   websocket.Upgrader
	newSession func() *session.Session
	ingestor   *ingest.Ingestor
}

// NewWSServer builds a server. ingestor may be nil, in which case ingest
// requests are rejected.
func NewWSServer(config Config, newSession func() *session.Session, ingestor *ingest.Ingestor) *WSServer {
	if config.Addr == "" {
		config.Addr = "localhost:8080"
	}
	s := &WSServer{
		config:     config,
		newSession: newSession,
		ingestor:   ingestor,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts non-browser clients, same-host pages and the
// configured origins.
func (s *WSServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.config.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// resolveFolder maps an ingest request onto a folder under IngestRoot.
// Relative folders are taken from the root.
func (s *WSServer) resolveFolder(folder string) (string, error) {
	root := s.config.IngestRoot
	if root == "" {
		return folder, nil
	}
	if !filepath.IsAbs(folder) {
		folder = filepath.Join(root, folder)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("invalid ingest root: %w", err)
	}
	realFolder, err := filepath.EvalSymlinks(folder)
	if err != nil {
		return "", fmt.Errorf("cannot access folder: %w", err)
	}

	rel, err := filepath.Rel(realRoot, realFolder)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideIngestRoot, folder)
	}
	return realFolder, nil
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("starting websocket server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(msgType, content string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(Message{Type: msgType, Content: content, Data: data}); err != nil {
		log.Warn().Err(err).Str("type", msgType).Msg("error sending message")
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	sess := s.newSession()
	log.Info().Str("session", sess.ID()).Str("remote", r.RemoteAddr).Msg("session opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("session", sess.ID()).Msg("error reading message")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(TypeError, fmt.Sprintf("invalid message: %v", err), nil)
			continue
		}

		s.handleMessage(ctx, c, sess, msg)
	}

	log.Info().Str("session", sess.ID()).Msg("session closed")
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, sess *session.Session, msg Message) {
	switch msg.Type {
	case TypeAsk:
		reply, err := sess.Ask(ctx, msg.Content)
		if err != nil {
			c.send(TypeError, err.Error(), nil)
			return
		}
		c.send(TypeResponse, reply.Content, map[string]any{"titles": sess.Titles(), "current": sess.Current()})

	case TypeMode:
		mode, err := session.ParseMode(msg.Content)
		if err != nil {
			c.send(TypeError, err.Error(), nil)
			return
		}
		sess.SetMode(mode)
		c.send(TypeStatus, fmt.Sprintf("mode set to %s", mode), nil)

	case TypeNewChat:
		i := sess.NewChat()
		c.send(TypeStatus, session.Greeting, map[string]any{"titles": sess.Titles(), "current": i})

	case TypeSelect:
		i, err := strconv.Atoi(msg.Content)
		if err == nil {
			err = sess.Select(i)
		}
		if err != nil {
			c.send(TypeError, fmt.Sprintf("cannot select chat %q: %v", msg.Content, err), nil)
			return
		}
		c.send(TypeStatus, fmt.Sprintf("selected chat %d", i), map[string]any{"messages": sess.Messages()})

	case TypeCollection:
		if err := sess.SetCollection(msg.Content); err != nil {
			c.send(TypeError, err.Error(), nil)
			return
		}
		c.send(TypeStatus, fmt.Sprintf("collection set to %s", msg.Content), nil)

	case TypeIngest:
		s.handleIngest(ctx, c, sess, msg.Content)

	default:
		c.send(TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

func (s *WSServer) handleIngest(ctx context.Context, c *conn, sess *session.Session, folder string) {
	if s.ingestor == nil {
		c.send(TypeError, "ingestion is not enabled on this server", nil)
		return
	}

	folder, err := s.resolveFolder(folder)
	if err != nil {
		c.send(TypeError, err.Error(), nil)
		return
	}

	c.send(TypeStatus, fmt.Sprintf("Processing folder: %s", folder), nil)

	summary, err := s.ingestor.WithProgress(func(p ingest.Progress) {
		if p.Stage == ingest.StageEmbed {
			c.send(TypeProgress, fmt.Sprintf("Embedded %d/%d batches", p.Done, p.Total), nil)
		}
	}).IngestFolder(ctx, folder, sess.Collection())
	if err != nil {
		c.send(TypeError, fmt.Sprintf("Failed to ingest folder: %v", err), nil)
		return
	}

	c.send(TypeStatus, fmt.Sprintf("Ingested %d chunks from %d documents", summary.Upserted, summary.Documents), map[string]any{
		"documents":       summary.Documents,
		"unsupported":     len(summary.Unsupported),
		"chunks":          summary.Chunks,
		"upserted":        summary.Upserted,
		"skipped_batches": len(summary.SkippedBatches),
		"complete":        summary.Complete(),
	})
}
