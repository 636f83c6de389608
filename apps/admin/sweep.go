package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
)

func (cli *commandLine) sweep(date string) error {
	day := core.Today()
	if date != "" {
		d, err := time.Parse(core.DateLayout, date)
		if err != nil {
			return errors.Wrapf(err, "invalid date %q", date)
		}
		day = d
	}

	ctx := gateway.WithActor(context.Background(), gateway.SystemActor)
	res, err := cli.memberships.Sweep(ctx, day)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s: %d memberships deactivated\n", day.Format(core.DateLayout), res.Deactivated)
	for _, lc := range res.LowCredit {
		fmt.Fprintf(cli.out, "  low credits: %s (%s) %d left\n", lc.FullName, lc.TypeName, lc.Remaining)
	}
	return nil
}
