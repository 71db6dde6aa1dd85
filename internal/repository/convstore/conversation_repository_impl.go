package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agentic-rag-be/internal/entity"
	"agentic-rag-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

const titleGraphemeLimit = 40

// ConversationRepositoryImpl stores one JSON document per conversation.
// Appends go through a per-id mutex and land via tmp file + fsync + rename,
// so a reader sees either the previous document or the new one, never a
// partial write.
type ConversationRepositoryImpl struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewConversationRepository(dir string) (contract.ConversationRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversations dir: %w", err)
	}
	return &ConversationRepositoryImpl{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (r *ConversationRepositoryImpl) Create(_ context.Context) (*entity.Conversation, error) {
	// Id allocation only. The document is written on first Append, so
	// abandoned conversations never touch disk.
	now := time.Now()
	return &entity.Conversation{
		Id:        uuid.NewString(),
		Messages:  []entity.Message{},
		CreatedAt: now,
		LastTime:  now,
	}, nil
}

func (r *ConversationRepositoryImpl) Append(_ context.Context, id string, message entity.Message) error {
	if !validId(id) {
		return contract.ErrConversationNotFound
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	conv, err := r.read(id)
	switch {
	case errors.Is(err, contract.ErrConversationNotFound):
		conv = &entity.Conversation{Id: id, CreatedAt: message.CreatedAt}
	case err != nil:
		return err
	}

	// Clamp so created_at stays non-decreasing within one document.
	if n := len(conv.Messages); n > 0 && message.CreatedAt.Before(conv.Messages[n-1].CreatedAt) {
		message.CreatedAt = conv.Messages[n-1].CreatedAt
	}

	if conv.Title == "" && message.Role == "user" {
		conv.Title = deriveTitle(message.Content)
	}

	conv.Messages = append(conv.Messages, message)
	conv.LastTime = message.CreatedAt

	return r.write(conv)
}

func (r *ConversationRepositoryImpl) Load(_ context.Context, id string) (*entity.Conversation, error) {
	if !validId(id) {
		return nil, contract.ErrConversationNotFound
	}
	return r.read(id)
}

func (r *ConversationRepositoryImpl) List(_ context.Context) ([]entity.ConversationSummary, error) {
	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	summaries := make([]entity.ConversationSummary, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		conv, err := r.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// Corrupt or concurrently deleted file; the listing stays usable.
			continue
		}
		summaries = append(summaries, entity.ConversationSummary{
			Id:           conv.Id,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			LastTime:     conv.LastTime,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastTime.After(summaries[j].LastTime)
	})
	return summaries, nil
}

func (r *ConversationRepositoryImpl) Delete(_ context.Context, id string) error {
	if !validId(id) {
		return contract.ErrConversationNotFound
	}

	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(r.path(id))
	if os.IsNotExist(err) {
		return contract.ErrConversationNotFound
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.locks, id)
	r.mu.Unlock()
	return nil
}

func (r *ConversationRepositoryImpl) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *ConversationRepositoryImpl) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *ConversationRepositoryImpl) read(id string) (*entity.Conversation, error) {
	payload, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, contract.ErrConversationNotFound
		}
		return nil, err
	}

	var conv entity.Conversation
	if err := json.Unmarshal(payload, &conv); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	if conv.Id == "" {
		conv.Id = id
	}
	return &conv, nil
}

func (r *ConversationRepositoryImpl) write(conv *entity.Conversation) error {
	payload, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, conv.Id+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.path(conv.Id))
}

// validId rejects ids that could escape the storage directory.
func validId(id string) bool {
	return id != "" &&
		!strings.ContainsAny(id, `/\`) &&
		!strings.Contains(id, "..")
}

// deriveTitle truncates to user-perceived characters so multi-byte content
// is never cut mid-glyph.
func deriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "New Conversation"
	}
	if uniseg.GraphemeClusterCount(content) <= titleGraphemeLimit {
		return content
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(content)
	for i := 0; i < titleGraphemeLimit && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String() + "..."
}
