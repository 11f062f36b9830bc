package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

type cliFixture struct {
	*commandLine
	out     *bytes.Buffer
	usrRepo user.Repository
	src     *inmemdb.ProgressSource
}

func setup(t *testing.T) *cliFixture {
	t.Helper()
	conf := &core.Config{
		AppName:   "Academia",
		SecretKey: "test-secret",
		TestMode:  true,
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Database:  core.DatabaseConfig{Engine: "postgres"},
	}

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)
	src := inmemdb.NewProgressSource(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(usrRepo)
	notifSvc := notification.NewService(notifRepo)
	certSvc := certificate.NewService(
		db,
		inmemdb.NewCertificateRepository(db),
		progress.NewTracker(src, usrSvc),
		notifSvc,
		usrSvc,
		nil, /* mailSvc */
		nil, /* logger */
	)

	// start CLI
	out := new(bytes.Buffer)
	return &cliFixture{
		commandLine: &commandLine{
			conf:     conf,
			out:      out,
			validate: validate,
			usrSvc:   usrSvc,
			certSvc:  certSvc,
			notifSvc: notifSvc,
			sweeper:  notification.NewSweeper(notifRepo, nil),
		},
		out:     out,
		usrRepo: usrRepo,
		src:     src,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (tt cliTest) check(t *testing.T, cli *cliFixture) {
	t.Helper()
	cli.out.Reset()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		require.NoError(t, err)
		if tt.wantOut != "" {
			assert.Contains(t, cli.out.String(), tt.wantOut)
		}
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "badges", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, cli.usrRepo, "Taken", "taken", "taken@test.cd", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no username nor email", args: []string{"adduser", "-name", "Awe"}, wantErr: errHelp},
		{name: "username taken", args: []string{"adduser", "-name", "Awe", "-username", "taken"}, wantErrStr: user.ErrUsernameExists.Error()},
		{name: "created", args: []string{"adduser", "-name", "Awe", "-username", "awe", "-email", "awe@test.cd"}, wantOut: "user awe created"},
		{name: "admin created", args: []string{"adduser", "-name", "Boss", "-username", "boss", "-admin"}, wantOut: "user boss created"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}

	t.Run("invalid email", func(t *testing.T) {
		err := cli.run([]string{"admin", "adduser", "-name", "Awe", "-email", "lol"})
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs))
	})

	t.Run("roles", func(t *testing.T) {
		ctx := context.Background()
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "awe")
		require.NoError(t, err)
		assert.True(t, usr.IsStudent())
		assert.False(t, usr.IsAdmin())

		boss, err := cli.usrSvc.GetByUsernameOrEmail(ctx, "boss")
		require.NoError(t, err)
		assert.True(t, boss.IsAdmin())
	})
}

func Test_commandLine_token(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, cli.usrRepo, "Admin", "admin", "admin@test.cd", []string{user.RoleAdmin}, true)

	tests := []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "user not found", args: []string{"token", "-username", "lol"}, wantErr: user.ErrNotFound},
		{name: "by email", args: []string{"token", "-username", usr.Email}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli)
		})
	}
	assert.Len(t, strings.Split(strings.TrimSpace(cli.out.String()), "."), 3, "header.payload.signature")
}

func Test_commandLine_jobs(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cli.notifSvc.SetNowFunc(func() time.Time { return now })
	cli.certSvc.SetNowFunc(func() time.Time { return now })

	usr := testutil.CreateUser(t, cli.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	cli.src.AddCourse("go", "go-101")
	cli.src.SetCourseCompleted(usr.ID, "go-101", true)
	cli.src.SetWritingSubmitted(usr.ID, "go-101", true)
	cert, err := cli.certSvc.IssueOrRefresh(ctx, usr.ID, "go")
	require.NoError(t, err)

	notifs, err := cli.notifSvc.List(ctx, notification.QueryFilter{UserID: usr.ID})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	_, err = cli.notifSvc.MarkForDeletion(ctx, notifs[0].ID)
	require.NoError(t, err)

	t.Run("sweep", func(t *testing.T) {
		cliTest{args: []string{"sweep"}, wantOut: "0 notification(s) deleted"}.check(t, cli)
		now = now.Add(notification.DeletionGracePeriod)
		cliTest{args: []string{"sweep"}, wantOut: "1 notification(s) deleted"}.check(t, cli)
	})

	cli.src.AddCourse("go", "go-102")

	t.Run("checkoutdated", func(t *testing.T) {
		tests := []cliTest{
			{name: "no args", args: []string{"checkoutdated"}, wantErr: errHelp},
			{name: "unknown category", args: []string{"checkoutdated", "-category", "rust"}, wantErr: progress.ErrUnknownCategory},
			{name: "one user", args: []string{"checkoutdated", "-category", "go", "-user", usr.ID}, wantOut: "outdated: true"},
			{name: "already flagged", args: []string{"checkoutdated", "-category", "go"}, wantOut: "0 certificate(s) became outdated"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.check(t, cli)
			})
		}

		got, err := cli.certSvc.Get(ctx, usr.ID, "go")
		require.NoError(t, err)
		assert.Equal(t, cert.ID, got.ID)
		assert.True(t, got.IsOutdated)
	})
}
