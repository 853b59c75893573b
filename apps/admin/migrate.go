package main

import (
	"github.com/jmoiron/sqlx"

	"github.com/margdarshak/gateway/storage/database"
)

var gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error { // mockable
	return database.Migrate(db.DB, command, args...)
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
