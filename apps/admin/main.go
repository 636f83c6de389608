// The admin CLI. It runs maintenance against the same container the API uses.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/hoopdesk/hoopdesk/apps/api/di/dig"
	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/user"
)

type adminParam struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	DB          *sqlx.DB
	Users       *user.Service
	Accounts    user.Provisioner
	Memberships *membership.Service
}

func main() {
	c := dig_container.New()
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(p adminParam) {
	defer func() { _ = p.DB.Close() }()

	cli := commandLine{
		conf:        p.Conf,
		db:          p.DB.DB,
		users:       p.Users,
		accounts:    p.Accounts,
		memberships: p.Memberships,
		out:         os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			p.Logger.Error(fmt.Sprintf("admin %v: %v", os.Args[1:], err), err)
		}
		_ = p.DB.Close()
		os.Exit(1)
	}
}
