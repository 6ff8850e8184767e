// Package pipeline ranks listing passes and streams exported books to
// output writers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-audiobooks-api/config"
	"github.com/aluiziolira/go-audiobooks-api/models"
	"github.com/aluiziolira/go-audiobooks-api/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers fail to drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for workers.
var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(books []*models.Book) error
	Close() error
	Validate() error
}

// Pipeline validates, de-duplicates by post id, and batches books into an
// OutputWriter. One Pipeline serves one export run.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	bookCh    chan *models.Book
	batchSize int

	wg sync.WaitGroup

	seen   parser.SeenSet
	seenMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	buffer := cfg.PipelineBufferSize
	if buffer <= 0 {
		buffer = 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		bookCh:    make(chan *models.Book, buffer),
		batchSize: batch,
		seen:      parser.NewSeenSet(cfg.DedupeMaxSize),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues books for downstream processing.
func (p *Pipeline) Process(books ...*models.Book) error {
	if len(books) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, book := range books {
		if book == nil {
			continue
		}
		if err := p.enqueue(book); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.bookCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.signalShutdown()
		return ErrPipelineCloseTimeout
	}
	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := p.Stats()
				slog.Info("pipeline progress",
					slog.Int64("processed", stats.Processed),
					slog.Int64("written", stats.Written),
					slog.Any("rejected", stats.Rejected),
				)
			case <-p.shutdown:
				return
			case <-p.ctx.Done():
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Book, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		p.metrics.addWritten(len(batch))
		batch = batch[:0]
		return nil
	}

	for book := range p.bookCh {
		prepared := p.prepare(book)
		if prepared == nil {
			continue
		}
		batch = append(batch, prepared)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(book *models.Book) *models.Book {
	if err := parser.ValidateBook(book); err != nil {
		p.metrics.addRejected("invalid_record")
		return nil
	}

	p.seenMu.Lock()
	if p.seen.Seen(book.ID) {
		p.seenMu.Unlock()
		p.metrics.addRejected("duplicate_id")
		return nil
	}
	p.seen.Add(book.ID)
	p.seenMu.Unlock()

	p.metrics.incrementProcessed()
	return book
}

func (p *Pipeline) enqueue(book *models.Book) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.bookCh <- book:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

// Stats is a snapshot of a pipeline's counters.
type Stats struct {
	Processed int64
	Written   int64
	Rejected  map[string]int
}

type metrics struct {
	mu    sync.Mutex
	stats Stats
}

func newMetrics() metrics {
	return metrics{stats: Stats{Rejected: make(map[string]int)}}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.stats.Processed++
	m.mu.Unlock()
}

func (m *metrics) addWritten(n int) {
	m.mu.Lock()
	m.stats.Written += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addRejected(reason string) {
	m.mu.Lock()
	m.stats.Rejected[reason]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.stats
	out.Rejected = make(map[string]int, len(m.stats.Rejected))
	for k, v := range m.stats.Rejected {
		out.Rejected[k] = v
	}
	return out
}
