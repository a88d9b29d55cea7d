package cmd

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/logger"
	"github.com/AsterZephyr/voffice/router"
	"github.com/AsterZephyr/voffice/server"
	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/turn"
	"github.com/AsterZephyr/voffice/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func serveCmd(version string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the office server",
		Action: func(ctx *cli.Context) error {
			conf, errs := config.Get()
			logger.Init(conf.LogLevel.AsZeroLogLevel())

			exit := false
			for _, err := range errs {
				log.WithLevel(err.Level).Msg(err.Msg)
				exit = exit || err.Level == zerolog.FatalLevel || err.Level == zerolog.PanicLevel
			}
			if exit {
				os.Exit(1)
			}

			if conf.ConnectionMode != config.ConnectionLocal {
				if _, _, err := conf.TurnIPProvider.Get(); err != nil {
					// error is already logged by .Get()
					os.Exit(1)
				}
			}

			messages, err := store.Open(conf.DatabaseDSN)
			if err != nil {
				log.Fatal().Err(err).Msg("could not open message store")
			}
			defer messages.Close()

			var tServer turn.Server
			if conf.ConnectionMode != config.ConnectionLocal {
				tServer, err = turn.Start(conf)
				if err != nil {
					log.Fatal().Err(err).Msg("could not start turn server")
				}
				if closer, ok := tServer.(io.Closer); ok {
					defer closer.Close()
				}
			}

			verifier := auth.NewJWTVerifier(conf.AuthSecret, conf.AuthIssuer)
			office := ws.NewOffice(verifier, tServer, messages, conf)

			go office.Start()

			signalCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cert, key := "", ""
			if conf.ServerTLS {
				cert, key = conf.TLSCertFile, conf.TLSKeyFile
			}
			r := router.Router(conf, office, verifier, messages, version)
			if err := server.Start(signalCtx, r, conf.ServerAddress, cert, key); err != nil {
				log.Fatal().Err(err).Msg("http server")
			}
			return nil
		},
	}
}
