package client

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/rs/zerolog/log"
)

// Capture 是一个共享源
// Done 在采集结束时关闭，Stop 释放采集源，可以重复调用
type Capture struct {
	Tracks []webrtc.TrackLocal
	Done   <-chan struct{}
	Stop   func()
}

// StaticCapture 包装已有的轨道，调用Stop之前不会结束
func StaticCapture(tracks ...webrtc.TrackLocal) *Capture {
	done := make(chan struct{})
	once := sync.Once{}
	return &Capture{
		Tracks: tracks,
		Done:   done,
		Stop: func() {
			once.Do(func() { close(done) })
		},
	}
}

// FileCapture 按帧率播放IVF文件中的视频帧，文件读完时采集结束
func FileCapture(path string) (*Capture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read ivf header: %w", err)
	}

	mimeType, err := ivfMimeType(header.FourCC)
	if err != nil {
		file.Close()
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mimeType}, "video", "voffice")
	if err != nil {
		file.Close()
		return nil, err
	}

	frameDuration := time.Second / 30
	if header.TimebaseDenominator != 0 && header.TimebaseNumerator != 0 {
		frameDuration = time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	}

	done := make(chan struct{})
	stop := make(chan struct{})
	once := sync.Once{}
	go func() {
		defer close(done)
		defer file.Close()

		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			frame, _, err := reader.ParseNextFrame()
			if errors.Is(err, io.EOF) {
				log.Debug().Str("file", path).Msg("Capture finished")
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Capture failed")
				return
			}
			if err := track.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
				log.Debug().Err(err).Msg("Write sample")
			}
		}
	}()

	return &Capture{
		Tracks: []webrtc.TrackLocal{track},
		Done:   done,
		Stop: func() {
			once.Do(func() { close(stop) })
		},
	}, nil
}

func ivfMimeType(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", fourCC)
	}
}
