package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"docuchat/internal/chunker"
	"docuchat/internal/model"
	"docuchat/internal/storage"
)

const (
	defaultChunkMaxTokens     = 500
	defaultEmbeddingBatchSize = 10 // embedding APIs often limit batch size
)

// IngestService drives the document status machine:
// pending -> processing -> ready | failed. It extracts text from the stored
// blob, chunks it, embeds the chunks, and writes them to the vector store as
// one batch.
type IngestService struct {
	docs      DocumentStore
	chunks    ChunkStore
	blobs     storage.Storage
	extractor TextExtractor
	embedder  Embedder
	maxTokens int
	batchSize int
}

func NewIngestService(
	docs DocumentStore,
	chunks ChunkStore,
	blobs storage.Storage,
	extractor TextExtractor,
	embedder Embedder,
	maxTokens int,
	batchSize int,
) *IngestService {
	if maxTokens <= 0 {
		maxTokens = defaultChunkMaxTokens
	}
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	return &IngestService{
		docs:      docs,
		chunks:    chunks,
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		maxTokens: maxTokens,
		batchSize: batchSize,
	}
}

// Ingest processes one uploaded document. A document already marked ready is
// a no-op; one currently processing is rejected so the pipeline never runs
// twice concurrently for the same document. Any failure flips the document
// to failed, which makes retries explicit rather than automatic.
func (s *IngestService) Ingest(ctx context.Context, documentID uint) error {
	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: document %d", ErrNotFound, documentID)
	}
	if doc.Status == model.DocumentStatusReady {
		return nil
	}

	ok, err := s.docs.MarkProcessing(documentID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: document %d", ErrDocumentBusy, documentID)
	}

	if err := s.run(ctx, doc); err != nil {
		if statusErr := s.docs.UpdateStatus(documentID, model.DocumentStatusFailed); statusErr != nil {
			log.Printf("mark document %d failed errored: %v", documentID, statusErr)
		}
		return err
	}
	return s.docs.UpdateStatus(documentID, model.DocumentStatusReady)
}

func (s *IngestService) run(ctx context.Context, doc *model.Document) error {
	blob, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer blob.Close()

	text, err := s.extractor.Extract(blob, doc.Filename)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: document has no extractable text", ErrExtractionFailed)
	}

	fragments := chunker.Chunk(text, s.maxTokens)
	if len(fragments) == 0 {
		return fmt.Errorf("%w: chunking produced no fragments", ErrExtractionFailed)
	}

	vectors, err := s.embedFragments(ctx, fragments)
	if err != nil {
		return err
	}

	if err := s.checkDimensions(vectors); err != nil {
		return err
	}
	return s.chunks.Put(doc.UserID, doc.ID, fragments, vectors)
}

func (s *IngestService) embedFragments(ctx context.Context, fragments []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(fragments))
	for i := 0; i < len(fragments); i += s.batchSize {
		end := i + s.batchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch, err := s.embedder.EmbedBatch(ctx, fragments[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("%w: got %d vectors for %d fragments", ErrEmbeddingFailed, len(vectors), len(fragments))
	}
	return vectors, nil
}

// checkDimensions enforces the store-wide vector dimensionality: every
// vector in the batch must agree with its peers and with whatever the store
// already holds.
func (s *IngestService) checkDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty embedding vector", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	stored, err := s.chunks.Dimension()
	if err != nil {
		return err
	}
	if stored != 0 && stored != dim {
		return fmt.Errorf("%w: store holds %d-dim vectors, got %d", ErrDimensionMismatch, stored, dim)
	}
	return nil
}
