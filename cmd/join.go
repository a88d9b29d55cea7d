package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AsterZephyr/voffice/client"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/logger"
	"github.com/AsterZephyr/voffice/proximity"
	"github.com/AsterZephyr/voffice/ws/outgoing"
	"github.com/pion/webrtc/v4"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func joinCmd() *cli.Command {
	return &cli.Command{
		Name:  "join",
		Usage: "join an office as a headless client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:5050/stream", Usage: "websocket url of the server"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"VOFFICE_TOKEN"}, Required: true, Usage: "bearer token"},
			&cli.StringFlag{Name: "room", Value: "main-office", Usage: "room to join"},
			&cli.IntFlag{Name: "x", Value: grid.Spawn.X},
			&cli.IntFlag{Name: "y", Value: grid.Spawn.Y},
			&cli.StringFlag{Name: "avatar"},
			&cli.StringFlag{Name: "share-ivf", Usage: "share the video frames of an IVF file"},
			&cli.DurationFlag{Name: "negotiation-timeout", Value: client.DefaultNegotiationTimeout},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: func(ctx *cli.Context) error {
			level, err := zerolog.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return err
			}
			logger.Init(level)

			signalCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(signalCtx, 10*time.Second)
			defer cancel()
			c, err := client.Dial(dialCtx, client.Options{
				URL:                ctx.String("url"),
				Token:              ctx.String("token"),
				NegotiationTimeout: ctx.Duration("negotiation-timeout"),
				OnProximity:        logProximity(),
				OnTrack:            consumeTrack,
				OnPeerError: func(err client.PeerError) {
					log.Warn().Err(err.Err).Str("peer", err.Remote.String()).Str("role", err.Role.String()).Msg("Peer failed")
				},
				OnDirectMessage: func(msg outgoing.NewDirectMessage) {
					log.Info().Str("from", msg.FromUserID).Str("to", msg.ToUserID).Msg(msg.Message)
				},
				OnRoomMessage: func(msg outgoing.NewMessage) {
					log.Info().Str("from", msg.Name).Msg(msg.Message)
				},
				OnWatchers: func(msg outgoing.ScreenshareWatchers) {
					names := make([]string, 0, len(msg.Watchers))
					for _, w := range msg.Watchers {
						names = append(names, w.Name)
					}
					log.Info().Strs("watchers", names).Msg("Watchers changed")
				},
			})
			if err != nil {
				return err
			}
			defer c.Close()

			welcome := c.Welcome()
			log.Info().Str("id", welcome.ID.String()).Str("user", welcome.UserID).Str("name", welcome.Name).Msg("Connected")

			if err := c.Join(ctx.String("room"), grid.Position{X: ctx.Int("x"), Y: ctx.Int("y")}, ctx.String("avatar")); err != nil {
				return err
			}

			if file := ctx.String("share-ivf"); file != "" {
				capture, err := client.FileCapture(file)
				if err != nil {
					return err
				}
				if err := c.StartSharing(capture); err != nil {
					capture.Stop()
					return err
				}
				log.Info().Str("file", file).Msg("Sharing")
			}

			select {
			case <-signalCtx.Done():
				log.Info().Msg("Leaving")
			case <-c.Done():
				return c.Err()
			}
			return nil
		},
	}
}

// logProximity 只在最近的人变化时打印
func logProximity() func(proximity.Result) {
	last := xid.NilID()
	return func(result proximity.Result) {
		nearest := xid.NilID()
		if result.Nearest != nil {
			nearest = result.Nearest.ID
		}
		if nearest == last {
			return
		}
		last = nearest
		if result.Nearest == nil {
			log.Info().Msg("Nobody nearby")
			return
		}
		log.Info().Str("nearest", nearest.String()).Float64("distance", result.Nearest.Distance).Int("nearby", len(result.Nearby)).Msg("Proximity changed")
	}
}

// consumeTrack 读取并丢弃收到的媒体包
func consumeTrack(sharer xid.ID, track *webrtc.TrackRemote) {
	if track == nil {
		return
	}
	log.Info().Str("sharer", sharer.String()).Str("codec", track.Codec().MimeType).Msg("Watching")
	go func() {
		for {
			if _, _, err := track.ReadRTP(); err != nil {
				log.Debug().Err(err).Str("sharer", sharer.String()).Msg("Track ended")
				return
			}
		}
	}()
}
