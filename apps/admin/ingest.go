package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	sqlxrepos "github.com/margdarshak/gateway/storage/database/sqlx"
)

const (
	chunkSize    = 600
	chunkOverlap = 100

	embedWorkers = 4
	insertBatch  = 50
)

var separators = []string{"\n\n", "\n", " "}

// splitText cuts text into windows of at most size runes, each overlapping the previous one by overlap runes.
// A window ends on the coarsest separator that keeps it longer than overlap.
func splitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	var chunks []string

	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := breakPoint(string(runes[start:end]), overlap); cut > 0 {
			end = start + cut
		}

		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}

// breakPoint returns the rune offset just past the last separator in window, or 0 when none lies beyond floor.
func breakPoint(window string, floor int) int {
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			if cut := utf8.RuneCountInString(window[:i]) + utf8.RuneCountInString(sep); cut > floor {
				return cut
			}
		}
	}
	return 0
}

// pageChunks splits a book into chunks tagged with their 1-based page number. Pages are separated by form feeds.
func pageChunks(text, subject, chapter, source string) []sqlxrepos.KnowledgeChunk {
	var chunks []sqlxrepos.KnowledgeChunk
	for i, page := range strings.Split(text, "\f") {
		for _, c := range splitText(page, chunkSize, chunkOverlap) {
			chunks = append(chunks, sqlxrepos.KnowledgeChunk{
				Content:    c,
				Subject:    subject,
				Chapter:    chapter,
				Page:       i + 1,
				SourceFile: source,
			})
		}
	}
	return chunks
}

func (cli *commandLine) ingest(path, subject, chapter string) error {
	ctx := context.Background()

	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading book")
	}
	chunks := pageChunks(string(b), subject, chapter, filepath.Base(path))
	if len(chunks) == 0 {
		return errors.Errorf("%s has no text", path)
	}
	cli.printf(color.FgCyan, "Processing %s: %d chunks\n", path, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := cli.embedder.Embed(gctx, chunks[i].Content)
			if err != nil {
				return errors.Wrapf(err, "embedding chunk from page %d", chunks[i].Page)
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += insertBatch {
		end := start + insertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		if err = cli.knowledge.Insert(ctx, chunks[start:end]...); err != nil {
			return err
		}
		cli.printf(color.FgGreen, "Inserted chunks %d-%d (pages %d-%d)\n", start+1, end, chunks[start].Page, chunks[end-1].Page)
	}
	return nil
}
