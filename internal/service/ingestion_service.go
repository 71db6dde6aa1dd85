package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"agentic-rag-be/internal/dto"
	"agentic-rag-be/internal/entity"
	"agentic-rag-be/pkg/embedding"
	"agentic-rag-be/pkg/store"
	"agentic-rag-be/pkg/utils"

	"agentic-rag-be/pkg/events"
	pktNats "agentic-rag-be/pkg/nats" // Renamed to avoid collision

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// embedBatchSize is how many chunks go to the embedding provider per round;
// progress advances once per batch.
const embedBatchSize = 50

// embedConcurrency bounds parallel embedding calls for providers without a
// batch API.
const embedConcurrency = 4

type IIngestionService interface {
	// Start subscribes the build worker to the build topic. Call once at
	// startup.
	Start(ctx context.Context) error

	// RequestBuild queues a full index rebuild. At most one build runs at a
	// time; a second request while one is running is refused, not queued.
	RequestBuild(ctx context.Context) (*dto.BuildStartResponse, error)

	Progress(ctx context.Context) entity.BuildProgress
	SaveDocument(ctx context.Context, file *multipart.FileHeader) (*dto.UploadResponse, error)
}

type ingestionService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	index          store.VectorIndex
	embedder       embedding.EmbeddingProvider
	eventPublisher *pktNats.Publisher
	documentsDir   string
	chunkSize      int
	chunkOverlap   int
	logger         *log.Logger

	mu       sync.RWMutex
	progress entity.BuildProgress
}

func NewIngestionService(
	pubSub *gochannel.GoChannel,
	topicName string,
	index store.VectorIndex,
	embedder embedding.EmbeddingProvider,
	eventPublisher *pktNats.Publisher,
	documentsDir string,
	chunkSize int,
	chunkOverlap int,
	logger *log.Logger,
) IIngestionService {
	return &ingestionService{
		pubSub:         pubSub,
		topicName:      topicName,
		index:          index,
		embedder:       embedder,
		eventPublisher: eventPublisher,
		documentsDir:   documentsDir,
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
		logger:         logger,
		progress:       entity.BuildProgress{Status: entity.BuildStatusIdle},
	}
}

func (s *ingestionService) Start(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *ingestionService) RequestBuild(ctx context.Context) (*dto.BuildStartResponse, error) {
	s.mu.Lock()
	if s.progress.Processing {
		s.mu.Unlock()
		return &dto.BuildStartResponse{
			Success: false,
			Message: "a build is already in progress",
		}, nil
	}
	s.progress = entity.BuildProgress{
		Processing: true,
		Status:     entity.BuildStatusRunning,
		Message:    "build queued",
	}
	s.mu.Unlock()

	payload, err := json.Marshal(dto.BuildIndexMessage{TriggeredAt: time.Now()})
	if err != nil {
		s.setError(fmt.Sprintf("queue build: %v", err))
		return nil, err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		s.setError(fmt.Sprintf("queue build: %v", err))
		return nil, err
	}

	return &dto.BuildStartResponse{
		Success: true,
		Message: "build started",
	}, nil
}

func (s *ingestionService) Progress(_ context.Context) entity.BuildProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// SaveDocument stores one uploaded file in the documents directory. The name
// is flattened to its base so uploads cannot escape the directory; only the
// next build picks the content up.
func (s *ingestionService) SaveDocument(_ context.Context, file *multipart.FileHeader) (*dto.UploadResponse, error) {
	if err := os.MkdirAll(s.documentsDir, 0o755); err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(file.Filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, fmt.Errorf("invalid filename %q", file.Filename)
	}
	target := filepath.Join(s.documentsDir, name)

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("document uploaded: %s (%d bytes)", name, size)

	return &dto.UploadResponse{
		Success:  true,
		Filename: name,
		Size:     int(size),
		Path:     target,
	}, nil
}

func (s *ingestionService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.BuildIndexMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Printf("[ERROR] Failed to unmarshal build message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	s.logger.Printf("[INFO] Index build started (triggered at %s)", payload.TriggeredAt.Format(time.RFC3339))
	s.runBuild(ctx)

	// Build outcomes land in the progress snapshot; redelivery would only
	// rebuild the same documents.
	msg.Ack()
}

// runBuild scans the documents directory, chunks and embeds everything and
// replaces the index in one swap. Readers keep searching the old index until
// the swap.
func (s *ingestionService) runBuild(ctx context.Context) {
	files, err := s.scanDocuments()
	if err != nil {
		s.failBuild(ctx, fmt.Sprintf("scan documents: %v", err))
		return
	}
	if len(files) == 0 {
		s.failBuild(ctx, fmt.Sprintf("no .txt or .md documents found in %s", s.documentsDir))
		return
	}
	s.publishEvent(ctx, events.NewBuildStarted(len(files)))

	inputs, err := s.collectChunks(files)
	if err != nil {
		s.failBuild(ctx, err.Error())
		return
	}
	if len(inputs) == 0 {
		s.failBuild(ctx, "documents contain no usable text")
		return
	}

	total := len(inputs)
	s.update(func(p *entity.BuildProgress) {
		p.Total = total
		p.Progress = 0
		p.CurrentFile = ""
		p.Message = fmt.Sprintf("embedding %d chunks from %d files", total, len(files))
	})

	records := make([]store.Record, 0, total)
	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		batch := inputs[start:end]

		texts := make([]string, len(batch))
		for i, input := range batch {
			texts[i] = input.Text
		}

		vectors, err := embedding.EmbedAll(ctx, s.embedder, texts, embedConcurrency)
		if err != nil {
			s.failBuild(ctx, fmt.Sprintf("embed chunks %d-%d: %v", start, end, err))
			return
		}

		for i, input := range batch {
			records = append(records, store.Record{
				ID:        uuid.NewString(),
				Text:      input.Text,
				Source:    input.Source,
				Embedding: vectors[i],
				Metadata:  map[string]interface{}{"chunk_index": start + i},
			})
		}

		s.update(func(p *entity.BuildProgress) {
			p.Progress = end
			p.CurrentFile = fmt.Sprintf("processed %d/%d chunks", end, total)
		})
	}

	if err := s.index.Replace(ctx, records); err != nil {
		s.failBuild(ctx, fmt.Sprintf("replace index: %v", err))
		return
	}

	s.update(func(p *entity.BuildProgress) {
		p.Processing = false
		p.Status = entity.BuildStatusCompleted
		p.Progress = total
		p.CurrentFile = ""
		p.Message = fmt.Sprintf("index built: %d chunks from %d files", total, len(files))
	})
	s.logger.Printf("[SUCCESS] Index built: %d chunks from %d files", total, len(files))
	s.publishEvent(ctx, events.NewBuildCompleted(len(files), total))
}

// scanDocuments lists the ingestible files (.txt and .md) by name, sorted
// for a stable build order.
func (s *ingestionService) scanDocuments() ([]string, error) {
	dirEntries, err := os.ReadDir(s.documentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".txt", ".md":
			files = append(files, de.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *ingestionService) collectChunks(files []string) ([]store.PassageInput, error) {
	var inputs []store.PassageInput
	for _, name := range files {
		s.update(func(p *entity.BuildProgress) { p.CurrentFile = name })

		content, err := os.ReadFile(filepath.Join(s.documentsDir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		for _, chunk := range utils.SplitText(string(content), s.chunkSize, s.chunkOverlap) {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			inputs = append(inputs, store.PassageInput{Text: chunk, Source: name})
		}
	}
	return inputs, nil
}

func (s *ingestionService) update(apply func(*entity.BuildProgress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.progress)
}

func (s *ingestionService) setError(message string) {
	s.update(func(p *entity.BuildProgress) {
		p.Processing = false
		p.Status = entity.BuildStatusError
		p.CurrentFile = ""
		p.Message = message
	})
}

func (s *ingestionService) failBuild(ctx context.Context, message string) {
	s.logger.Printf("[ERROR] Index build failed: %s", message)
	s.setError(message)
	s.publishEvent(ctx, events.NewBuildFailed(message))
}

func (s *ingestionService) publishEvent(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	// We log error but don't fail the build as notification is auxiliary
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Printf("[WARN] Failed to publish %s event: %v", evt.Code, err)
	}
}
