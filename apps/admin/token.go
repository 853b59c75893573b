package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/storage/supabase"
)

// token mints a session token the gateway accepts when it verifies sessions locally.
func (cli *commandLine) token(secret, userID, email string, ttl time.Duration) error {
	if _, err := uuid.Parse(userID); err != nil {
		return errors.Wrapf(err, "invalid user id %q", userID)
	}

	tok, err := supabase.NewJWTVerifier(secret).Generate(userID, email, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tok)
	return nil
}
