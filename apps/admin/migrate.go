package main

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

var gooseRunFunc = runGoose // mockable

func runGoose(command string, db *sql.DB, dir string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return goose.Run(command, db, dir, args...)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, "storage/database/migrations", arguments...)
}
