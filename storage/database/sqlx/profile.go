package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

type profileRepository struct {
	db core.DB
}

var _ gateway.ProfileStore = (*profileRepository)(nil)

func NewProfileRepository(db core.DB) *profileRepository {
	return &profileRepository{db: db}
}

// SubscriptionTier returns the raw stored tier of caller's profile; "" when there is no profile row
// or the row has no tier.
func (repo profileRepository) SubscriptionTier(ctx context.Context, caller gateway.Identity) (string, error) {
	if caller.IsZero() {
		return "", nil
	}

	var tier null.String
	err := asCaller(ctx, repo.db, caller, func(tx core.DBTransactor) error {
		return tx.GetContext(ctx, &tier, `SELECT subscription_tier FROM profiles WHERE id = $1`, caller.UserID)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", errors.Wrap(err, "querying profile")
	}
	return tier.String, nil
}
