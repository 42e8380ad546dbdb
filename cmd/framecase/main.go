package main

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/zurustar/framecase/pkg/app"
	"github.com/zurustar/framecase/pkg/config"
	"github.com/zurustar/framecase/pkg/player"
	"github.com/zurustar/framecase/pkg/player/ebitenplayer"
)

//go:embed scripts
var embeddedScripts embed.FS

func main() {
	application := app.New(builtinTests(), embeddedScripts, app.WithWindowedPlayer(windowedPlayer))
	if err := application.Run(os.Args[1:]); err != nil {
		if !errors.Is(err, app.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// windowedPlayer は GUI モードのプレイヤーを作成する
func windowedPlayer(cfg *config.Config, log *slog.Logger) player.Player {
	return ebitenplayer.New(
		ebitenplayer.WithLogger(log),
		ebitenplayer.WithFrameOverlay(cfg.DumpFrames),
	)
}
