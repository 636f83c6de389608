package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/user"
)

var errHelp = errors.New("help provided")

type (
	approver interface {
		Approve(ctx context.Context, targetID string, d user.Decision) (user.Profile, error)
	}

	sweeper interface {
		Sweep(ctx context.Context, today time.Time) (membership.SweepResult, error)
	}

	commandLine struct {
		conf        *core.Config
		db          *sql.DB
		users       approver
		accounts    user.Provisioner
		memberships sweeper
		out         io.Writer
	}
)

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]                                 - run a goose command (up, down, status, redo, version...)")
	fmt.Fprintln(cli.out, "  adduser -id ID -email E -name N -role R [-role R...]      - provision an approved account")
	fmt.Fprintln(cli.out, "  approve -user ID -decision approved|rejected [-reason R]  - record an account decision")
	fmt.Fprintln(cli.out, "  sweep [-date YYYY-MM-DD]                                  - deactivate expired memberships, report low credits")
	fmt.Fprintln(cli.out, "  token -user ID [-email EMAIL] [-ttl 1h]                   - sign an access token for local testing")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		cmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		id := cmd.String("id", "", "The account id issued by the auth backend.")
		email := cmd.String("email", "", "The account email.")
		name := cmd.String("name", "", "The full name.")
		var roles roleList
		cmd.Var(&roles, "role", "A role to grant, repeatable or comma separated.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" || *email == "" || *name == "" || len(roles) == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(*id, *email, *name, roles)

	case "approve":
		cmd := flag.NewFlagSet("approve", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		id := cmd.String("user", "", "The id of the pending account.")
		decision := cmd.String("decision", "", "approved or rejected.")
		reason := cmd.String("reason", "", "Why the account was rejected.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" || *decision == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.approve(*id, user.ApprovalStatus(*decision), *reason)

	case "sweep":
		cmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		date := cmd.String("date", "", "The day to sweep, YYYY-MM-DD (defaults to today, UTC).")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sweep(*date)

	case "token":
		cmd := flag.NewFlagSet("token", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		id := cmd.String("user", "", "The subject of the token.")
		email := cmd.String("email", "", "The email claim.")
		ttl := cmd.Duration("ttl", time.Hour, "How long the token stays valid.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.token(*id, *email, *ttl)

	default:
		cli.printUsage()
		return errHelp
	}
}
