package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/urfave/cli/v2"
)

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "sign a token for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "user id, stored in the sub claim"},
			&cli.StringFlag{Name: "name", Usage: "display name"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"VOFFICE_AUTH_SECRET"}},
			&cli.StringFlag{Name: "issuer", EnvVars: []string{"VOFFICE_AUTH_ISSUER"}},
		},
		Action: func(ctx *cli.Context) error {
			secret := ctx.String("secret")
			if len(secret) < 32 {
				return errors.New("secret must be at least 32 bytes long")
			}
			verifier := auth.NewJWTVerifier(secret, ctx.String("issuer"))
			token, err := verifier.Sign(auth.Identity{UserID: ctx.String("user"), Name: ctx.String("name")}, ctx.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, token)
			return err
		},
	}
}
