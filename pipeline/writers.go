package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-audiobooks-api/models"
)

// csvColumn maps one CSV column to a book accessor.
type csvColumn struct {
	name  string
	value func(*models.Book) string
}

// csvColumns is the export layout. Chapters are exported as a count; the full
// chapter list is only available in JSON output.
var csvColumns = []csvColumn{
	{"id", func(b *models.Book) string { return b.ID }},
	{"title", func(b *models.Book) string { return b.Title }},
	{"author", func(b *models.Book) string { return b.Author }},
	{"narrator", func(b *models.Book) string { return b.Narrator }},
	{"duration", func(b *models.Book) string { return b.Duration }},
	{"views", func(b *models.Book) string { return b.Views }},
	{"date", func(b *models.Book) string { return b.Date }},
	{"url", func(b *models.Book) string { return b.URL }},
	{"image_url", func(b *models.Book) string { return b.ImageURL }},
	{"chapters", func(b *models.Book) string { return strconv.Itoa(len(b.Chapters)) }},
}

// fileSink is the output file shared by the CSV and JSONL writers.
type fileSink struct {
	kind string
	file *os.File
	rows int
	mu   sync.Mutex
}

func openSink(kind, filename string) (*fileSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", kind, err)
	}
	return &fileSink{kind: kind, file: f}, nil
}

// validate fails when no book reached the file.
func (s *fileSink) validate() error {
	s.mu.Lock()
	rows := s.rows
	s.mu.Unlock()

	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", s.kind, err)
	}
	if info.Size() <= 0 || rows == 0 {
		return fmt.Errorf("%s file has no books", s.kind)
	}
	return nil
}

// CSVWriter writes one row per book.
type CSVWriter struct {
	*fileSink
	writer *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openSink("csv", filename)
	if err != nil {
		return nil, err
	}

	header := make([]string, len(csvColumns))
	for i, col := range csvColumns {
		header[i] = col.name
	}
	writer := csv.NewWriter(sink.file)
	if err := writer.Write(header); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{fileSink: sink, writer: writer}, nil
}

func (cw *CSVWriter) Write(books []*models.Book) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := make([]string, len(csvColumns))
	for _, book := range books {
		for i, col := range csvColumns {
			record[i] = col.value(book)
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record %s: %w", book.ID, err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

func (cw *CSVWriter) Validate() error {
	return cw.validate()
}

// JSONWriter writes newline-delimited JSON books, chapters included.
type JSONWriter struct {
	*fileSink
	buf     *bufio.Writer
	encoder *json.Encoder
}

func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openSink("json", filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(sink.file)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{fileSink: sink, buf: buf, encoder: encoder}, nil
}

func (jw *JSONWriter) Write(books []*models.Book) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, book := range books {
		if err := jw.encoder.Encode(book); err != nil {
			return fmt.Errorf("encode json record %s: %w", book.ID, err)
		}
		jw.rows++
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

func (jw *JSONWriter) Validate() error {
	return jw.validate()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
