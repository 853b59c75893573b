package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margdarshak/gateway/core/gateway"
	"github.com/margdarshak/gateway/tests"
)

func strPtr(s string) *string { return &s }

func TestProfileRepository_SubscriptionTier(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	elite := testutil.CreateProfile(t, db, strPtr("Premium+AI"))
	noTier := testutil.CreateProfile(t, db, nil)

	tier, err := repo.SubscriptionTier(ctx, gateway.Identity{UserID: elite})
	require.NoError(t, err)
	assert.Equal(t, "Premium+AI", tier)

	tier, err = repo.SubscriptionTier(ctx, gateway.Identity{UserID: noTier})
	require.NoError(t, err)
	assert.Equal(t, "", tier)

	// row-level security hides other callers' profiles
	tier, err = repo.SubscriptionTier(ctx, gateway.Identity{UserID: "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	assert.Equal(t, "", tier)
}

func TestKnowledgeRepository_Match(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewKnowledgeRepository(db)
	ctx := context.Background()

	near := make([]float32, 768)
	near[0] = 1
	far := make([]float32, 768)
	far[1] = 1

	require.NoError(t, repo.Insert(ctx,
		KnowledgeChunk{Content: "test: momentum is conserved", Embedding: near, Subject: "physics", Chapter: "7", Page: 12, SourceFile: "repos_test"},
		KnowledgeChunk{Content: "test: unrelated", Embedding: far, Subject: "biology", SourceFile: "repos_test"},
	))
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM pcmb_knowledge WHERE source_file = 'repos_test'`) })

	for _, caller := range []gateway.Identity{{}, {UserID: "00000000-0000-0000-0000-000000000001"}} {
		passages, err := repo.Match(ctx, caller, near, 0.25, 6)
		require.NoError(t, err)
		require.NotEmpty(t, passages)
		assert.Equal(t, "test: momentum is conserved", passages[0].Content)
		assert.Equal(t, 12, passages[0].Page)
		for _, p := range passages {
			assert.NotEqual(t, "test: unrelated", p.Content)
		}
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}
