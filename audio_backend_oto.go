//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

package main

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer drives a real audio device through oto. The chip's Read method
// is handed to oto directly, so the render loop runs on oto's playback
// goroutine and sample pacing comes from the device.
type OtoPlayer struct {
	ctx    *oto.Context
	player *oto.Player
	mutex  sync.Mutex
}

func NewOtoPlayer() (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SAMPLE_RATE,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   0, // driver default, ~50ms
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{ctx: ctx}, nil
}

func (op *OtoPlayer) Start(chip *SFXChip) error {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		return nil
	}
	op.player = op.ctx.NewPlayer(chip)
	op.player.Play()
	return nil
}

func (op *OtoPlayer) Stop() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player == nil {
		return nil
	}
	err := op.player.Close()
	op.player = nil
	return err
}

// NewAudioOutput is the default backend constructor for this build.
func NewAudioOutput() (AudioOutput, error) {
	return NewOtoPlayer()
}
