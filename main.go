package main

import (
	"github.com/AsterZephyr/voffice/cmd"
	pmode "github.com/AsterZephyr/voffice/config/mode"
)

var (
	version    = "unknown"
	commitHash = "unknown"
	mode       = pmode.Dev
)

func main() {
	pmode.Set(mode)
	cmd.Run(version, commitHash)
}
