// sfx_player.go - High-level playback facade over the SFX core

package main

import (
	"fmt"
	"os"
)

// Bank layout of a raw .p8sfx image: 64 records of 68 bytes, optionally
// followed by the 256-byte music pattern table.
const (
	sfxBankBytes   = NUM_SFX_SLOTS * SFX_RECORD_BYTES
	musicBankBytes = NUM_MUSIC_PATTERNS * 4
	musicBankWords = sfxBankBytes / 2
)

// SFXPlayer wires a chip, its cartridge RAM and an audio backend into a
// ready-to-use player. It is the embedding surface for hosts that do not
// speak the register interface directly.
type SFXPlayer struct {
	cart    *CartridgeRAM
	chip    *SFXChip
	backend AudioOutput
	started bool

	hasMusic bool
}

func NewSFXPlayer(backend AudioOutput) *SFXPlayer {
	cart := NewCartridgeRAM(0)
	return &SFXPlayer{
		cart:    cart,
		chip:    NewSFXChip(cart),
		backend: backend,
	}
}

// Chip exposes the underlying core for register-level access and tests.
func (p *SFXPlayer) Chip() *SFXChip { return p.chip }

// LoadFile reads a .p8sfx bank image from disk.
func (p *SFXPlayer) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sfx bank %s: %w", path, err)
	}
	return p.LoadData(data)
}

// LoadData installs a bank image: the SFX records land at word 0 and the
// music table, when present, right after. The chip's base registers are
// pointed at them.
func (p *SFXPlayer) LoadData(data []byte) error {
	if len(data) < SFX_RECORD_BYTES {
		return fmt.Errorf("sfx bank: %d bytes, need at least one %d-byte record",
			len(data), SFX_RECORD_BYTES)
	}
	if len(data) > sfxBankBytes+musicBankBytes {
		return fmt.Errorf("sfx bank: %d bytes exceeds bank size %d",
			len(data), sfxBankBytes+musicBankBytes)
	}

	p.cart.Reset()
	p.cart.LoadBytes(0, data)
	p.hasMusic = len(data) > sfxBankBytes

	p.chip.HandleWrite(SFX_BASE_HI, 0)
	p.chip.HandleWrite(SFX_BASE_LO, 0)
	p.chip.HandleWrite(MUSIC_BASE_HI, musicBankWords>>16)
	p.chip.HandleWrite(MUSIC_BASE_LO, musicBankWords&0xFFFF)
	p.chip.HandleWrite(SFX_CTRL, 1)
	return nil
}

// Start opens the audio backend; playback commands before Start still
// queue and take effect on the first pulled sample.
func (p *SFXPlayer) Start() error {
	if p.started {
		return nil
	}
	if err := p.backend.Start(p.chip); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *SFXPlayer) Stop() error {
	if !p.started {
		return nil
	}
	p.started = false
	return p.backend.Stop()
}

// Play starts an SFX slot on an explicit channel 0-3 or ChannelAuto.
// ChannelMatch instead stops the slot wherever it is currently playing and
// starts nothing. offset is the starting note, length 0 follows the
// record's loop header and SFX_LEN_FOREVER loops through all 32 notes.
func (p *SFXPlayer) Play(slot int, channel int, offset int, length int) error {
	if slot < 0 || slot >= NUM_SFX_SLOTS {
		return fmt.Errorf("sfx slot %d out of range", slot)
	}
	chSel, err := channelSelector(channel)
	if err != nil {
		return err
	}
	p.chip.HandleWrite(SFX_LEN, uint32(length)&0xFF)
	p.chip.HandleWrite(SFX_CMD, SFX_CMD_VALID|
		chSel<<12|uint32(offset&0x3F)<<6|uint32(slot))
	return nil
}

// StopSFX force-stops a channel, or every channel with ChannelAll.
func (p *SFXPlayer) StopSFX(channel int) error {
	return p.sentinel(channel, SFX_IDX_STOP)
}

// ReleaseSFX ends looping on a channel so it finishes its current pass.
func (p *SFXPlayer) ReleaseSFX(channel int) error {
	return p.sentinel(channel, SFX_IDX_RELEASE)
}

func (p *SFXPlayer) sentinel(channel int, idx uint32) error {
	var chSel uint32 = SFX_CH_MATCH
	if channel != ChannelAll {
		var err error
		chSel, err = channelSelector(channel)
		if err != nil {
			return err
		}
	}
	p.chip.HandleWrite(SFX_CMD, SFX_CMD_VALID|chSel<<12|idx)
	return nil
}

func channelSelector(channel int) (uint32, error) {
	switch {
	case channel >= 0 && channel < NUM_CHANNELS:
		return uint32(channel), nil
	case channel == ChannelAuto:
		return SFX_CH_AUTO, nil
	case channel == ChannelMatch:
		return SFX_CH_MATCH, nil
	}
	return 0, fmt.Errorf("channel %d out of range", channel)
}

// PlayMusic starts the pattern sequencer. mask 0 claims all four channels;
// fadeFrames ramps the music in.
func (p *SFXPlayer) PlayMusic(pattern int, mask uint8, fadeFrames int) error {
	if pattern < 0 || pattern >= NUM_MUSIC_PATTERNS {
		return fmt.Errorf("music pattern %d out of range", pattern)
	}
	if !p.hasMusic {
		return fmt.Errorf("loaded bank has no music table")
	}
	p.chip.HandleWrite(MUSIC_FADE, uint32(fadeFrames)&0xFFFF)
	p.chip.HandleWrite(MUSIC_CMD, MUSIC_CMD_START|
		uint32(pattern)<<7|uint32(mask&0x0F)<<3)
	return nil
}

// StopMusic halts the sequencer, fading over fadeFrames when nonzero.
func (p *SFXPlayer) StopMusic(fadeFrames int) {
	p.chip.HandleWrite(MUSIC_FADE, uint32(fadeFrames)&0xFFFF)
	p.chip.HandleWrite(MUSIC_CMD, MUSIC_CMD_STOP)
}

// IsPlaying reports whether the channel currently has a live voice.
func (p *SFXPlayer) IsPlaying(channel int) bool {
	if channel < 0 || channel >= NUM_CHANNELS {
		return false
	}
	return p.chip.HandleRead(SFX_STAT_CH0_SLOT+uint32(channel)*4) != STATUS_IDLE
}

// MusicPlaying reports whether the sequencer is running.
func (p *SFXPlayer) MusicPlaying() bool {
	return p.chip.HandleRead(SFX_STAT_MUSIC_PAT) != STATUS_IDLE
}

// SetChannelFX sets a channel's post-FX override bits (FX_FORCE_*).
func (p *SFXPlayer) SetChannelFX(channel int, bits uint32) error {
	if channel < 0 || channel >= NUM_CHANNELS {
		return fmt.Errorf("channel %d out of range", channel)
	}
	p.chip.HandleWrite(SFX_FX_CH0+uint32(channel)*4, bits&0x0F)
	return nil
}

// Reset stops the backend and returns chip and cartridge to power-on.
func (p *SFXPlayer) Reset() error {
	err := p.Stop()
	p.chip.Reset()
	p.cart.Reset()
	p.hasMusic = false
	return err
}
