package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Run 解析命令行并执行子命令
func Run(version, commitHash string) {
	app := cli.App{
		Name:    "voffice",
		Usage:   "virtual office with proximity screen sharing",
		Version: fmt.Sprintf("%s@%s", version, commitHash),
		Commands: []*cli.Command{
			serveCmd(version),
			joinCmd(),
			tokenCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("app error")
	}
}
