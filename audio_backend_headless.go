//go:build headless

// audio_backend_headless.go - Clocked null audio output for CI and servers

package main

import (
	"sync"
	"time"
)

// HeadlessPlayer pulls samples from the chip at real-time rate and
// discards them. It keeps playback state machines advancing on machines
// with no audio device.
type HeadlessPlayer struct {
	mutex sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

func NewHeadlessPlayer() (*HeadlessPlayer, error) {
	return &HeadlessPlayer{}, nil
}

func (hp *HeadlessPlayer) Start(chip *SFXChip) error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	if hp.stop != nil {
		return nil
	}
	hp.stop = make(chan struct{})
	hp.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		// 10ms blocks at 22050 Hz.
		const block = SAMPLE_RATE / 100
		buf := make([]int16, block)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				chip.GenerateSamples(buf)
			}
		}
	}(hp.stop, hp.done)
	return nil
}

func (hp *HeadlessPlayer) Stop() error {
	hp.mutex.Lock()
	defer hp.mutex.Unlock()

	if hp.stop == nil {
		return nil
	}
	close(hp.stop)
	<-hp.done
	hp.stop = nil
	hp.done = nil
	return nil
}

// NewAudioOutput is the default backend constructor for this build.
func NewAudioOutput() (AudioOutput, error) {
	return NewHeadlessPlayer()
}
