package main

import (
	"context"
	"fmt"

	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/user"
)

// approve records a decision on behalf of the system actor.
func (cli *commandLine) approve(id string, decision user.ApprovalStatus, reason string) error {
	ctx := gateway.WithActor(context.Background(), gateway.SystemActor)
	prof, err := cli.users.Approve(ctx, id, user.Decision{Decision: decision, Reason: reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s) is now %s\n", prof.FullName, prof.Email, prof.ApprovalStatus)
	return nil
}
