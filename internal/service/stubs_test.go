package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"agentic-rag-be/internal/entity"
	"agentic-rag-be/internal/repository/contract"
	"agentic-rag-be/pkg/llm"
	"agentic-rag-be/pkg/store"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// scriptedLLM serves queued completions in call order; the last entry repeats
// once the queue is down to one. Complete and StreamComplete consume from the
// same queue.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	failFirst int
	failErr   error
	prompts   []string
}

func (s *scriptedLLM) next(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.failFirst > 0 {
		s.failFirst--
		return "", s.failErr
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted provider exhausted after %d calls", len(s.prompts))
	}
	response := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return response, nil
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	return s.next(prompt)
}

func (s *scriptedLLM) StreamComplete(_ context.Context, prompt string, _ ...llm.Option) (<-chan llm.Chunk, error) {
	text, err := s.next(prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Chunk, 1)
	ch <- llm.Chunk{Content: text}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *scriptedLLM) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func resolverFor(provider llm.LLMProvider) LLMResolver {
	return func(string, string) (llm.LLMProvider, error) { return provider, nil }
}

// memRepo is an in-memory ConversationRepository with the store's
// create-on-first-append semantics: Create only allocates an id, Load on an
// id that was never appended to reports not found.
type memRepo struct {
	mu        sync.Mutex
	convs     map[string][]entity.Message
	nextId    int
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{convs: make(map[string][]entity.Message)}
}

func (r *memRepo) Create(_ context.Context) (*entity.Conversation, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	return &entity.Conversation{Id: fmt.Sprintf("conv-%d", r.nextId)}, nil
}

func (r *memRepo) Append(_ context.Context, id string, message entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.convs[id] = append(r.convs[id], message)
	return nil
}

func (r *memRepo) Load(_ context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages, ok := r.convs[id]
	if !ok {
		return nil, contract.ErrConversationNotFound
	}
	out := make([]entity.Message, len(messages))
	copy(out, messages)
	conv := &entity.Conversation{Id: id, Messages: out}
	if len(out) > 0 {
		conv.Title = out[0].Content
		conv.CreatedAt = out[0].CreatedAt
		conv.LastTime = out[len(out)-1].CreatedAt
	}
	return conv, nil
}

func (r *memRepo) List(_ context.Context) ([]entity.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.convs))
	for id := range r.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	summaries := make([]entity.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		messages := r.convs[id]
		summary := entity.ConversationSummary{Id: id, MessageCount: len(messages)}
		if len(messages) > 0 {
			summary.Title = messages[0].Content
			summary.LastTime = messages[len(messages)-1].CreatedAt
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[id]; !ok {
		return contract.ErrConversationNotFound
	}
	delete(r.convs, id)
	return nil
}

func (r *memRepo) messages(id string) []entity.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Message, len(r.convs[id]))
	copy(out, r.convs[id])
	return out
}

// fakeIndex is a scripted VectorIndex.
type fakeIndex struct {
	mu         sync.Mutex
	candidates []store.Candidate
	replaced   [][]store.Record
	sources    []string
	searchErr  error
}

func (f *fakeIndex) Add(_ context.Context, records []store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range records {
		f.candidates = append(f.candidates, store.Candidate{Record: record})
	}
	return nil
}

func (f *fakeIndex) Replace(_ context.Context, records []store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, records)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int) ([]store.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]store.Candidate, len(f.candidates))
	copy(out, f.candidates)
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates), nil
}

func (f *fakeIndex) Sources(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources, nil
}

func (f *fakeIndex) Ready(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates) > 0
}

func (f *fakeIndex) replacedSets() [][]store.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]store.Record, len(f.replaced))
	copy(out, f.replaced)
	return out
}

func candidate(text, source string, distance float64) store.Candidate {
	return store.Candidate{
		Record:   store.Record{ID: source + text[:1], Text: text, Source: source},
		Distance: distance,
	}
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []float32{1, 0, 0}, nil
}
