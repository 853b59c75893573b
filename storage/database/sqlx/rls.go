package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

const (
	roleAnon          = "anon"
	roleAuthenticated = "authenticated"
)

// callerClaims returns the claims and database role a transaction impersonates for caller.
// Only the two unprivileged roles are ever assumed, whatever the session claims say.
func callerClaims(caller gateway.Identity) (string, string, error) {
	role := roleAuthenticated
	claims := make(map[string]interface{}, len(caller.Claims)+3)
	if caller.IsZero() {
		role = roleAnon
	} else {
		for k, v := range caller.Claims {
			claims[k] = v
		}
		claims["sub"] = caller.UserID
		if caller.Email != "" {
			claims["email"] = caller.Email
		}
	}
	claims["role"] = role

	data, err := json.Marshal(claims)
	if err != nil {
		return "", "", errors.Wrap(err, "encoding claims")
	}
	return string(data), role, nil
}

// asCaller runs fn in a read-only transaction that impersonates caller,
// so the same row-level policies apply as for the caller's own session.
func asCaller(ctx context.Context, db core.DB, caller gateway.Identity, fn func(tx core.DBTransactor) error) error {
	claims, role, err := callerClaims(caller)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, claims); err != nil {
		return errors.Wrap(err, "setting claims")
	}
	if _, err = tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(role)); err != nil {
		return errors.Wrap(err, "setting role")
	}
	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// vectorLiteral renders an embedding in pgvector's text format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
