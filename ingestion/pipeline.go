package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/clearance/ai"
	"github.com/poiesic/clearance/core"
	"github.com/poiesic/clearance/storage"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 32

// Pipeline loads department folders into their collections.
// Embedding batches are processed concurrently on a worker pool.
type Pipeline struct {
	chunks        storage.ChunkRepository
	manifest      storage.ManifestRepository
	embeddingPool *ants.Pool
	embeddingProc processor
	batchSize     int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per provider call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	chunks storage.ChunkRepository,
	manifest storage.ManifestRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if manifest == nil {
		return nil, ErrManifestRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunks:        chunks,
		manifest:      manifest,
		embeddingPool: embeddingPool,
		batchSize:     DefaultBatchSize,
		logger:        slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Created after options so the processor gets the final logger.
	embeddingProc, err := newEmbeddingProcessor(provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	Reset bool // delete the collection before ingesting
	Force bool // re-ingest files even when unchanged
}

// FileResult describes what happened to one source file.
type FileResult struct {
	Source  string
	Type    DocumentType
	Chunks  int
	Skipped bool // unchanged since the last run, or empty
	Err     error
}

// DepartmentReport summarizes the ingestion of one department folder.
type DepartmentReport struct {
	Department string
	Collection core.CollectionID
	Files      []FileResult
	Removed    []string // sources that disappeared from the folder
	Total      int      // chunks in the collection afterwards
}

// Err joins the errors of failed files.
func (r *DepartmentReport) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Source, f.Err))
		}
	}
	return errors.Join(errs...)
}

// IngestDirectory ingests every department folder under root.
// A department that fails does not stop the others; the joined error is
// returned alongside the reports.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string, opts *IngestOptions) ([]*DepartmentReport, error) {
	departments, err := listDepartments(root)
	if err != nil {
		return nil, err
	}
	if len(departments) == 0 {
		p.logger.Warn("no department folders found", "root", root)
	}

	var (
		reports []*DepartmentReport
		errs    []error
	)
	for _, dept := range departments {
		report, err := p.IngestDepartment(ctx, dept, filepath.Join(root, dept), opts)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", dept, err))
		}
	}
	return reports, errors.Join(errs...)
}

// IngestDepartment ingests one department folder into "<department>_docs".
// The collection is created even when the folder holds no documents.
func (p *Pipeline) IngestDepartment(ctx context.Context, department, dir string, opts *IngestOptions) (*DepartmentReport, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}
	collection := core.CollectionForDepartment(department)
	if err := core.ValidateCollectionID(collection); err != nil {
		return nil, err
	}
	logger := p.logger.With("department", department, "collection", collection)

	if opts.Reset {
		if err := p.resetCollection(ctx, collection); err != nil {
			return nil, err
		}
		logger.Info("collection cleared")
	}
	if _, err := p.chunks.CreateCollection(ctx, collection); err != nil {
		return nil, err
	}

	paths, err := listDocuments(dir)
	if err != nil {
		return nil, err
	}

	report := &DepartmentReport{Department: department, Collection: collection}
	present := make(map[string]bool, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		present[filepath.Base(path)] = true
		result := p.ingestFile(ctx, department, collection, path, opts.Force)
		if result.Err != nil {
			logger.Error("file ingestion failed", "source", result.Source, "err", result.Err)
		}
		report.Files = append(report.Files, result)
	}

	removed, err := p.pruneSources(ctx, department, collection, present)
	if err != nil {
		return report, err
	}
	report.Removed = removed

	if report.Total, err = p.chunks.Count(ctx, collection); err != nil {
		return report, err
	}
	logger.Info("department ingested", "files", len(report.Files), "removed", len(removed), "total", report.Total)
	return report, report.Err()
}

func (p *Pipeline) resetCollection(ctx context.Context, collection core.CollectionID) error {
	if err := p.chunks.DeleteCollection(ctx, collection); err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
		return err
	}
	return p.manifest.ClearSources(ctx, collection)
}

// ingestFile chunks, embeds and stores one file. Unchanged files are
// skipped unless force is set. When a file shrinks, chunks past its new
// length are removed.
func (p *Pipeline) ingestFile(ctx context.Context, department string, collection core.CollectionID, path string, force bool) FileResult {
	result := FileResult{Source: filepath.Base(path)}

	doc, err := LoadDocument(department, path)
	if err != nil {
		result.Err = err
		return result
	}
	result.Type = doc.Type

	previous, err := p.manifest.LoadSource(ctx, collection, doc.Source)
	if err != nil {
		result.Err = err
		return result
	}
	digest := doc.Digest()
	if !force && previous != nil && previous.Digest == digest {
		result.Skipped = true
		result.Chunks = previous.Chunks
		return result
	}

	texts, err := doc.Chunks()
	if err != nil {
		result.Err = err
		return result
	}
	if len(texts) == 0 {
		p.logger.Warn("no chunks generated", "source", doc.Source)
		result.Skipped = true
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			Id:         ChunkID(department, doc.Source, doc.Type, i),
			Collection: collection,
			Content:    text,
			Metadata: map[string]string{
				core.MetadataDepartment: department,
				core.MetadataSource:     doc.Source,
				core.MetadataType:       string(doc.Type),
			},
		}
	}

	if len(chunks) > 0 {
		if err := p.embed(ctx, chunks); err != nil {
			result.Err = err
			return result
		}
		if _, err := p.chunks.AddChunks(ctx, chunks...); err != nil {
			result.Err = err
			return result
		}
	}

	if previous != nil && previous.Chunks > len(chunks) {
		stale := chunkIDs(department, doc.Source, doc.Type, len(chunks), previous.Chunks)
		if err := p.chunks.DeleteChunks(ctx, collection, stale...); err != nil {
			result.Err = err
			return result
		}
	}

	if err := p.manifest.SaveSource(ctx, &core.SourceRecord{
		Collection: collection,
		Source:     doc.Source,
		Digest:     digest,
		Chunks:     len(chunks),
	}); err != nil {
		result.Err = err
		return result
	}

	result.Chunks = len(chunks)
	p.logger.Debug("file ingested", "source", doc.Source, "type", doc.Type, "chunks", len(chunks))
	return result
}

// pruneSources deletes the chunks of files recorded in the manifest that
// are no longer in the folder.
func (p *Pipeline) pruneSources(ctx context.Context, department string, collection core.CollectionID, present map[string]bool) ([]string, error) {
	records, err := p.manifest.Sources(ctx, collection)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, record := range records {
		if present[record.Source] {
			continue
		}
		docType, ok := TypeOf(record.Source)
		if ok && record.Chunks > 0 {
			ids := chunkIDs(department, record.Source, docType, 0, record.Chunks)
			if err := p.chunks.DeleteChunks(ctx, collection, ids...); err != nil {
				return removed, err
			}
		}
		if err := p.manifest.DeleteSource(ctx, collection, record.Source); err != nil {
			return removed, err
		}
		removed = append(removed, record.Source)
	}
	return removed, nil
}

func chunkIDs(department, source string, docType DocumentType, from, to int) []core.ID {
	ids := make([]core.ID, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, ChunkID(department, source, docType, i))
	}
	return ids
}

// embed splits chunks into batches and embeds them on the worker pool.
// The first failing batch cancels the rest.
func (p *Pipeline) embed(ctx context.Context, chunks []*core.Chunk) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(chunks); start += p.batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			if err := p.embeddingProc.process(ctx, batch); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
