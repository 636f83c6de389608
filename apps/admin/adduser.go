package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core/user"
)

// roleList collects -role flags. Each value may itself be comma separated.
type roleList []user.Role

func (l *roleList) String() string {
	names := make([]string, len(*l))
	for i, r := range *l {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

func (l *roleList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		r := user.Role(strings.TrimSpace(name))
		if !r.Known() {
			return fmt.Errorf("unknown role %q", name)
		}
		*l = append(*l, r)
	}
	return nil
}

// addUser provisions an approved profile for an account the auth backend already issued.
func (cli *commandLine) addUser(id, email, name string, roles []user.Role) error {
	ctx := context.Background()
	prof, err := cli.accounts.SaveProfile(ctx, user.Profile{
		ID:             id,
		Email:          email,
		FullName:       name,
		ApprovalStatus: user.StatusApproved,
	})
	if err != nil {
		return errors.Wrap(err, "saving profile")
	}
	if err = cli.accounts.SetRoles(ctx, prof.ID, roles); err != nil {
		return errors.Wrap(err, "setting roles")
	}
	fmt.Fprintf(cli.out, "%s (%s) added as %s\n", prof.FullName, prof.Email, (*roleList)(&roles).String())
	return nil
}
