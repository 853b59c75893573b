package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

type (
	// KnowledgeChunk is one embedded passage of a textbook, as written by the ingest command.
	KnowledgeChunk struct {
		Content    string
		Embedding  []float32
		Subject    string
		Chapter    string
		Page       int
		SourceFile string
	}

	passageRow struct {
		ID         int64       `db:"id"`
		Content    string      `db:"content"`
		Subject    null.String `db:"subject"`
		Chapter    null.String `db:"chapter"`
		Page       null.Int    `db:"page_number"`
		Similarity float64     `db:"similarity"`
	}

	knowledgeRepository struct {
		db core.DB
	}
)

var _ gateway.KnowledgeStore = (*knowledgeRepository)(nil)

func NewKnowledgeRepository(db core.DB) *knowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (r passageRow) passage() gateway.Passage {
	return gateway.Passage{
		ID:         r.ID,
		Content:    r.Content,
		Subject:    r.Subject.String,
		Chapter:    r.Chapter.String,
		Page:       r.Page.Int,
		Similarity: r.Similarity,
	}
}

// Match returns up to limit passages whose cosine similarity to embedding exceeds threshold, best first.
// The search runs as caller.
func (repo knowledgeRepository) Match(ctx context.Context, caller gateway.Identity, embedding []float32, threshold float64, limit int) ([]gateway.Passage, error) {
	if len(embedding) == 0 {
		return nil, errors.New("empty embedding")
	}

	var rows []passageRow
	err := asCaller(ctx, repo.db, caller, func(tx core.DBTransactor) error {
		return tx.SelectContext(ctx, &rows,
			`SELECT id, content, subject, chapter, page_number, similarity FROM match_pcmb_knowledge($1::vector, $2, $3)`,
			vectorLiteral(embedding), threshold, limit,
		)
	})
	if err != nil {
		return nil, errors.Wrap(err, "matching knowledge")
	}

	passages := make([]gateway.Passage, 0, len(rows))
	for _, r := range rows {
		passages = append(passages, r.passage())
	}
	return passages, nil
}

// Insert stores chunks in one transaction. It runs with the connection's own role.
func (repo knowledgeRepository) Insert(ctx context.Context, chunks ...KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO pcmb_knowledge (content, embedding, subject, chapter, page_number, source_file)
		VALUES ($1, $2::vector, $3, $4, $5, $6)`)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range chunks {
		if _, err = stmt.ExecContext(ctx, c.Content, vectorLiteral(c.Embedding), c.Subject, c.Chapter, c.Page, c.SourceFile); err != nil {
			return errors.Wrapf(err, "inserting chunk %d of %s", i, c.SourceFile)
		}
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Count returns the number of stored passages.
func (repo knowledgeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, `SELECT count(*) FROM pcmb_knowledge`); err != nil {
		return 0, errors.Wrap(err, "counting knowledge")
	}
	return n, nil
}
