package main

import (
	"fmt"
	"time"

	echoapi "github.com/hoopdesk/hoopdesk/apps/api/echo"
)

func (cli *commandLine) token(id, email string, ttl time.Duration) error {
	claims := echoapi.NewClaims(id, email, cli.conf.Auth.JWTAudience, ttl)
	ss, err := echoapi.GenerateToken(claims, cli.conf.Auth.JWTSecret)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, ss)
	return nil
}
