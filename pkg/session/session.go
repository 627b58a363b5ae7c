// Package session holds the state of one interactive conversation: its chat
// records, the selected collection and the answering mode.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/store"
)

type Mode string

const (
	ModeDefault Mode = "default" // plain multi-turn chat
	ModeRAG     Mode = "rag"     // answers grounded in the collection
)

const (
	Greeting       = "Hello! How can I help you?"
	titleMaxLength = 16
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDefault, "":
		return ModeDefault, nil
	case ModeRAG:
		return ModeRAG, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

type answerer interface {
	Answer(ctx context.Context, collection, question string) (string, error)
}

// Session is safe for concurrent use; requests are serialized.
type Session struct {
	mu         sync.Mutex
	id         string
	collection string
	mode       Mode
	records    [][]models.Message
	titles     []string
	titled     []bool
	current    int

	chat     types.Generator
	answerer answerer
}

func New(chat types.Generator, ans answerer) *Session {
	s := &Session{
		id:         uuid.NewString(),
		collection: store.DefaultCollection,
		mode:       ModeDefault,
		chat:       chat,
		answerer:   ans,
	}
	s.newChat()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Collection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

func (s *Session) SetCollection(name string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = name
	return nil
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// NewChat starts a fresh record seeded with the greeting and selects it.
func (s *Session) NewChat() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newChat()
}

func (s *Session) newChat() int {
	s.records = append(s.records, []models.Message{{Role: models.RoleAssistant, Content: Greeting}})
	s.titles = append(s.titles, fmt.Sprintf("Chat %d", len(s.records)))
	s.titled = append(s.titled, false)
	s.current = len(s.records) - 1
	return s.current
}

func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("no chat record %d", i)
	}
	s.current = i
	return nil
}

func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.titles)
}

// Messages returns a copy of the current record.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records[s.current])
}

// Ask appends the question to the current record and answers it according
// to the mode. On failure the question is removed again so the record only
// holds completed exchanges.
func (s *Session) Ask(ctx context.Context, question string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.current
	s.records[i] = append(s.records[i], models.Message{Role: models.RoleUser, Content: question})

	var (
		reply models.Message
		err   error
	)
	switch s.mode {
	case ModeRAG:
		var content string
		content, err = s.answerer.Answer(ctx, s.collection, question)
		reply = models.Message{Role: models.RoleAssistant, Content: content}
	default:
		reply, err = s.chat.Chat(ctx, slices.Clone(s.records[i]))
	}
	if err != nil {
		s.records[i] = s.records[i][:len(s.records[i])-1]
		return models.Message{}, err
	}

	s.records[i] = append(s.records[i], reply)
	if !s.titled[i] {
		s.titles[i] = title(question)
		s.titled[i] = true
	}
	return reply, nil
}

func title(question string) string {
	r := []rune(question)
	if len(r) <= titleMaxLength {
		return question
	}
	return string(r[:titleMaxLength]) + "..."
}
