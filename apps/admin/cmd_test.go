package main

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/kumoedu/kumo/core/user"
	"github.com/kumoedu/kumo/storage/database/inmemdb"
)

func setup(t *testing.T) (*commandLine, user.Repository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewUserRepository(db)
	return &commandLine{usrRepo: repo}, repo
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo := setup(t)
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("password123"), nil }

	tests := []cliTest{
		{name: "no subcommand", args: []string{}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"lol"}, wantErr: errHelp},
		{name: "adduser: no flags", args: []string{"adduser"}, wantErr: errHelp},
		{name: "adduser: missing email", args: []string{"adduser", "-username", "teacher1"}, wantErr: errHelp},
		{name: "adduser: unknown role", args: []string{"adduser", "-username", "teacher1", "-email", "t@kumo.test", "-role", "9"}, wantErr: errHelp},
		{name: "adduser: ok", args: []string{"adduser", "-username", "teacher1", "-email", "t@kumo.test", "-role", "1"}},
		{name: "adduser: idempotent", args: []string{"adduser", "-username", "teacher1", "-email", "t@kumo.test", "-role", "2"}},
		{name: "resetpassword: no flags", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "resetpassword: ok", args: []string{"resetpassword", "-username", "teacher1"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	usr, err := repo.GetUserByUsername(context.Background(), "teacher1")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if usr.Role != user.RoleAdmin {
		t.Errorf("adduser did not update role; got %v, want %v", usr.Role, user.RoleAdmin)
	}
	if err := usr.CheckPassword("password123"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "down", "status", "version", "redo", "reset":
			return nil
		}
		return fmt.Errorf("%q: no such command", command)
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && gotCommand != tt.args[1] {
				t.Errorf("migrate ran %q, want %q", gotCommand, tt.args[1])
			}
		})
	}
}
