package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// DefaultConvertTimeout is the wall-clock budget for one converter run.
// The child process is killed when it expires.
const DefaultConvertTimeout = 10 * time.Minute

// ConvertService runs the conversion job: materialize the source PDF to
// a scratch file, invoke the external converter, and upload the produced
// EPUB. Scratch files are isolated per document and removed on every exit
// path. Conversion never blocks ingestion; the two state machines are
// independent and may run concurrently for the same document.
type ConvertService struct {
	store     driven.DocumentStore
	objects   driven.ObjectStore
	converter driven.Converter
	logger    *slog.Logger

	scratchBase string
	timeout     time.Duration
}

// ConvertOption configures a ConvertService.
type ConvertOption func(*ConvertService)

// WithScratchDir overrides the base directory for scratch files.
func WithScratchDir(dir string) ConvertOption {
	return func(s *ConvertService) {
		if dir != "" {
			s.scratchBase = dir
		}
	}
}

// WithConvertTimeout overrides the converter wall-clock budget.
func WithConvertTimeout(d time.Duration) ConvertOption {
	return func(s *ConvertService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewConvertService creates a new ConvertService.
func NewConvertService(
	store driven.DocumentStore,
	objects driven.ObjectStore,
	converter driven.Converter,
	logger *slog.Logger,
	opts ...ConvertOption,
) *ConvertService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConvertService{
		store:       store,
		objects:     objects,
		converter:   converter,
		logger:      logger,
		scratchBase: os.TempDir(),
		timeout:     DefaultConvertTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes one conversion attempt. A missing document record is fatal
// and surfaces domain.ErrNotFound. Any later error marks the conversion
// failed with a truncated reason; that status write is best-effort.
func (s *ConvertService) Run(ctx context.Context, documentID string) (err error) {
	logger := s.logger.With("document_id", documentID)

	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("convert document %s: %w", documentID, err)
	}

	sourceKey := doc.ConvertSourceKey()
	if sourceKey == "" {
		return fmt.Errorf("convert document %s: %w", documentID, domain.ErrNotConvertible)
	}

	// Claim: processing, prior error cleared.
	if err := s.store.UpdateConversion(ctx, documentID, domain.ConversionProcessing, "", ""); err != nil {
		return fmt.Errorf("claim conversion: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		reason := domain.TruncateError(err.Error())
		if ferr := s.store.UpdateConversion(ctx, documentID, domain.ConversionFailed, "", reason); ferr != nil {
			logger.Error("failed to record conversion failure", "error", ferr)
		}
	}()

	// Scratch files are isolated per document so concurrent conversions
	// never share paths. Cleanup is unconditional and tolerates files
	// that were never produced.
	scratch := filepath.Join(s.scratchBase, "folio-convert-"+documentID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(scratch); rerr != nil {
			logger.Warn("failed to remove scratch dir", "dir", scratch, "error", rerr)
		}
	}()

	data, err := s.objects.Download(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", sourceKey, err)
	}

	inputPath := filepath.Join(scratch, "input.pdf")
	outputPath := filepath.Join(scratch, "output.epub")
	if err := os.WriteFile(inputPath, data, 0o644); err != nil {
		return fmt.Errorf("write scratch input: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.converter.Convert(cctx, inputPath, outputPath, doc.Title, doc.Author); err != nil {
		return fmt.Errorf("converter: %w", err)
	}

	produced, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("read converter output: %w", err)
	}

	epubKey := swapExtension(sourceKey, ".epub")
	if _, err := s.objects.Upload(ctx, epubKey, produced, "application/epub+zip"); err != nil {
		return fmt.Errorf("upload %s: %w", epubKey, err)
	}

	if err := s.store.UpdateConversion(ctx, documentID, domain.ConversionCompleted, epubKey, ""); err != nil {
		return fmt.Errorf("record conversion result: %w", err)
	}

	logger.Info("document converted",
		"epub_key", epubKey,
		"bytes", len(produced),
		"duration", time.Since(start),
	)
	return nil
}

// swapExtension derives the output key from the source key.
func swapExtension(key, ext string) string {
	return strings.TrimSuffix(key, filepath.Ext(key)) + ext
}
