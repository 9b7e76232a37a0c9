// sfx_chip.go - SFX synthesizer core: register file, command ring, mixer

package main

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// AudioOutput is the playback backend contract. Start begins pulling
// samples from the chip (via Read or GenerateSamples) until Stop.
type AudioOutput interface {
	Start(chip *SFXChip) error
	Stop() error
}

// Command ring entry kinds.
const (
	cmdPlaySFX = iota + 1
	cmdMusicStart
	cmdMusicStop
)

const cmdRingSize = 64 // power of two

// SFXChip is the complete synthesizer core: 8 voices, the record loader,
// the music sequencer and the memory-mapped register file.
//
// Threading: HandleWrite/HandleRead run on the control thread and touch
// only atomics, the register latch mutex and the command ring producer
// side. Everything under "render-owned" below is touched only by the
// render thread via GenerateSample, so the render path takes no locks.
type SFXChip struct {
	mem MemoryBus

	// Control-plane registers.
	enabled    atomic.Bool
	sfxBase    atomic.Uint32
	musicBase  atomic.Uint32
	noteAtk    atomic.Uint32
	noteRel    atomic.Uint32
	musicFade  atomic.Uint32
	fxOverride [NUM_CHANNELS]atomic.Uint32

	// Status mirrors, published by the render thread.
	statusSlot    [NUM_CHANNELS]atomic.Uint32
	statusNote    [NUM_CHANNELS]atomic.Uint32
	statusPattern atomic.Uint32
	statusPatTick atomic.Uint32
	statusTick    atomic.Uint32

	// Base-register halves latch on the control thread; writing the LO
	// half commits the assembled address.
	latchMu     sync.Mutex
	sfxBaseHi   uint32
	musicBaseHi uint32
	latchedLen  uint32

	// Single-producer single-consumer command ring, control -> render.
	cmdRing [cmdRingSize]uint64
	cmdHead atomic.Uint32 // consumer cursor
	cmdTail atomic.Uint32 // producer cursor

	// Render-owned state.
	loader       *SFXLoader
	voices       [NUM_VOICES]*Voice
	seq          *MusicSequencer
	pending      [NUM_CHANNELS]pendingPlay
	tickPhase    int
	readLeftover byte
	haveLeftover bool
}

type pendingPlay struct {
	active bool
	slot   uint8
	offset int
	length int
}

func NewSFXChip(mem MemoryBus) *SFXChip {
	c := &SFXChip{mem: mem}
	c.loader = NewSFXLoader(mem)
	for i := range c.voices {
		c.voices[i] = &Voice{chip: c, index: i, ch: i & 3, isSub: i >= NUM_CHANNELS}
		c.voices[i].ws.Init()
	}
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		c.voices[ch].sub = c.voices[ch+NUM_CHANNELS]
	}
	c.seq = NewMusicSequencer(c)
	c.noteAtk.Store(DEFAULT_NOTE_ATK)
	c.noteRel.Store(DEFAULT_NOTE_REL)
	for ch := range c.statusSlot {
		c.statusSlot[ch].Store(STATUS_IDLE)
		c.statusNote[ch].Store(STATUS_IDLE)
	}
	c.statusPattern.Store(STATUS_IDLE)
	return c
}

func (c *SFXChip) attackLen() int          { return int(c.noteAtk.Load()) }
func (c *SFXChip) releaseLen() int         { return int(c.noteRel.Load()) }
func (c *SFXChip) fxOverrideBits(ch int) uint32 { return c.fxOverride[ch].Load() }

// ---- control plane ----

// HandleWrite decodes a register write. value carries the low 16 bits of
// the bus word; wider registers split across HI/LO pairs.
func (c *SFXChip) HandleWrite(addr uint32, value uint32) {
	value &= 0xFFFF

	switch addr {
	case SFX_CTRL:
		c.enabled.Store(value&0x01 != 0)

	case SFX_BASE_HI:
		c.latchMu.Lock()
		c.sfxBaseHi = value
		c.latchMu.Unlock()
	case SFX_BASE_LO:
		c.latchMu.Lock()
		c.sfxBase.Store(c.sfxBaseHi<<16 | value)
		c.latchMu.Unlock()

	case MUSIC_BASE_HI:
		c.latchMu.Lock()
		c.musicBaseHi = value
		c.latchMu.Unlock()
	case MUSIC_BASE_LO:
		c.latchMu.Lock()
		c.musicBase.Store(c.musicBaseHi<<16 | value)
		c.latchMu.Unlock()

	case SFX_NOTE_ATK:
		c.noteAtk.Store(value)
	case SFX_NOTE_REL:
		c.noteRel.Store(value)
	case SFX_LEN:
		c.latchMu.Lock()
		c.latchedLen = value & 0xFF
		c.latchMu.Unlock()

	case SFX_CMD:
		if value&SFX_CMD_VALID == 0 {
			return
		}
		c.latchMu.Lock()
		length := c.latchedLen
		c.latchMu.Unlock()
		slot := value & 0x3F
		offset := (value >> 6) & 0x3F
		chSel := (value >> 12) & 0x07
		c.enqueue(packCmd(cmdPlaySFX, chSel, slot, offset, length))

	case MUSIC_CMD:
		switch {
		case value&MUSIC_CMD_STOP != 0:
			c.enqueue(packCmd(cmdMusicStop, 0, 0, 0, c.musicFade.Load()))
		case value&MUSIC_CMD_START != 0:
			pattern := (value >> 7) & 0x3F
			mask := (value >> 3) & 0x0F
			c.enqueue(packCmd(cmdMusicStart, mask, pattern, 0, c.musicFade.Load()))
		}

	case MUSIC_FADE:
		c.musicFade.Store(value)

	case SFX_FX_CH0, SFX_FX_CH1, SFX_FX_CH2, SFX_FX_CH3:
		ch := (addr - SFX_FX_CH0) / 4
		c.fxOverride[ch].Store(value & 0x0F)
	}
}

// HandleRead returns register contents; status registers reflect the most
// recent render-thread publish.
func (c *SFXChip) HandleRead(addr uint32) uint32 {
	switch addr {
	case SFX_VERSION_REG:
		return SFX_VERSION
	case SFX_CTRL:
		if c.enabled.Load() {
			return 1
		}
		return 0
	case SFX_BASE_HI:
		return c.sfxBase.Load() >> 16
	case SFX_BASE_LO:
		return c.sfxBase.Load() & 0xFFFF
	case MUSIC_BASE_HI:
		return c.musicBase.Load() >> 16
	case MUSIC_BASE_LO:
		return c.musicBase.Load() & 0xFFFF
	case SFX_NOTE_ATK:
		return c.noteAtk.Load()
	case SFX_NOTE_REL:
		return c.noteRel.Load()
	case MUSIC_FADE:
		return c.musicFade.Load()
	case SFX_FX_CH0, SFX_FX_CH1, SFX_FX_CH2, SFX_FX_CH3:
		return c.fxOverride[(addr-SFX_FX_CH0)/4].Load()
	case SFX_STAT_CH0_SLOT, SFX_STAT_CH1_SLOT, SFX_STAT_CH2_SLOT, SFX_STAT_CH3_SLOT:
		return c.statusSlot[(addr-SFX_STAT_CH0_SLOT)/4].Load()
	case SFX_STAT_CH0_NOTE, SFX_STAT_CH1_NOTE, SFX_STAT_CH2_NOTE, SFX_STAT_CH3_NOTE:
		return c.statusNote[(addr-SFX_STAT_CH0_NOTE)/4].Load()
	case SFX_STAT_MUSIC_PAT:
		return c.statusPattern.Load()
	case SFX_STAT_MUSIC_COUNT:
		return c.statusPatTick.Load()
	case SFX_STAT_TICK_COUNT:
		return c.statusTick.Load()
	}
	return 0
}

func packCmd(kind, a, b, cc, d uint32) uint64 {
	return uint64(kind)<<56 | uint64(a&0xFF)<<48 | uint64(b&0xFF)<<40 |
		uint64(cc&0xFF)<<32 | uint64(d&0xFFFF)
}

func unpackCmd(w uint64) (kind, a, b, cc, d uint32) {
	return uint32(w >> 56), uint32(w>>48) & 0xFF, uint32(w>>40) & 0xFF,
		uint32(w>>32) & 0xFF, uint32(w) & 0xFFFF
}

// enqueue pushes onto the command ring. A full ring drops the command;
// the control plane can always re-issue, and blocking here would stall
// the writer against the render thread.
func (c *SFXChip) enqueue(cmd uint64) {
	tail := c.cmdTail.Load()
	if tail-c.cmdHead.Load() >= cmdRingSize {
		return
	}
	c.cmdRing[tail%cmdRingSize] = cmd
	c.cmdTail.Store(tail + 1)
}

// ---- render plane ----

// drainCommands applies every queued control command. Runs at the top of
// each sample so command-to-audio latency is one sample.
func (c *SFXChip) drainCommands() {
	for {
		head := c.cmdHead.Load()
		if head == c.cmdTail.Load() {
			return
		}
		cmd := c.cmdRing[head%cmdRingSize]
		c.cmdHead.Store(head + 1)

		kind, a, b, cc, d := unpackCmd(cmd)
		switch kind {
		case cmdPlaySFX:
			c.execPlay(int(a), uint8(b), int(cc), int(d))
		case cmdMusicStart:
			c.seq.Start(int(b), uint8(a), int(d))
		case cmdMusicStop:
			c.seq.Stop(int(d))
		}
	}
}

// execPlay resolves the channel selector and either starts, stops,
// releases or queues playback.
func (c *SFXChip) execPlay(chSel int, slot uint8, offset, length int) {
	switch slot {
	case SFX_IDX_STOP:
		c.forEachSelected(chSel, slot, func(v *Voice) { v.ForceStop() })
		return
	case SFX_IDX_RELEASE:
		c.forEachSelected(chSel, slot, func(v *Voice) { v.ForceRelease() })
		return
	}

	if chSel == SFX_CH_MATCH {
		// Match stops every channel playing this slot; it never starts one.
		for ch := 0; ch < NUM_CHANNELS; ch++ {
			if c.voices[ch].state != VoiceIdle && c.voices[ch].slot == slot {
				c.pending[ch].active = false
				c.voices[ch].ForceStop()
			}
		}
		return
	}

	ch := c.resolveChannel(chSel)
	if ch < 0 {
		return
	}
	v := c.voices[ch]
	c.seq.channelTaken(ch)
	if v.state == VoiceIdle {
		c.pending[ch].active = false
		v.Start(slot, offset, length)
		return
	}
	// Busy: queue one-deep, last write wins; dispatched at the next note
	// boundary.
	c.pending[ch] = pendingPlay{active: true, slot: slot, offset: offset, length: length}
}

// resolveChannel maps a channel selector to a concrete channel. Auto picks
// channel 0 when idle, otherwise the first idle channel, otherwise 0 (the
// request queues there).
func (c *SFXChip) resolveChannel(chSel int) int {
	switch {
	case chSel < NUM_CHANNELS:
		return chSel
	case chSel == SFX_CH_AUTO:
		for ch := 0; ch < NUM_CHANNELS; ch++ {
			if c.voices[ch].state == VoiceIdle && !c.pending[ch].active {
				return ch
			}
		}
		return 0
	}
	return -1
}

// forEachSelected applies fn to the selected primary voices. The stop and
// release sentinels use the match selector to mean "every active channel".
func (c *SFXChip) forEachSelected(chSel int, slot uint8, fn func(*Voice)) {
	if chSel < NUM_CHANNELS {
		c.pending[chSel].active = false
		fn(c.voices[chSel])
		return
	}
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		c.pending[ch].active = false
		fn(c.voices[ch])
	}
}

func (c *SFXChip) dispatchPending(ch int) {
	p := &c.pending[ch]
	if !p.active {
		return
	}
	p.active = false
	c.voices[ch].Start(p.slot, p.offset, p.length)
}

// GenerateSample produces one signed 16-bit mono sample. This is the whole
// render path: commands, one loader word, the sequencer, eight voices and
// the saturating mix.
func (c *SFXChip) GenerateSample() int16 {
	if !c.enabled.Load() {
		return 0
	}

	c.drainCommands()

	c.loader.SetBase(c.sfxBase.Load())
	if voice, rec, done := c.loader.Tick(); done {
		c.voices[voice].onLoadComplete(rec)
	}

	c.seq.TickSample()

	// Sub-voices first so parents see this sample's output.
	for i := NUM_CHANNELS; i < NUM_VOICES; i++ {
		c.voices[i].renderSample()
	}

	var mix int32
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		v := c.voices[ch]
		s := v.renderSample()
		if c.seq.OwnsChannel(ch) {
			s = fxMul(s, c.seq.FadeLevel())
		}
		mix += s
		if v.state == VoiceIdle || v.noteBoundary {
			c.dispatchPending(ch)
		}
	}

	c.publishStatus()
	return int16(satSample(mix))
}

// GenerateSamples fills buf. Used by the headless backend and by tests.
func (c *SFXChip) GenerateSamples(buf []int16) {
	for i := range buf {
		buf[i] = c.GenerateSample()
	}
}

// Read implements io.Reader for the audio backend: little-endian signed
// 16-bit mono PCM. Odd-length reads carry the split sample across calls.
func (c *SFXChip) Read(p []byte) (int, error) {
	n := 0
	if c.haveLeftover && n < len(p) {
		p[n] = c.readLeftover
		c.haveLeftover = false
		n++
	}
	for n+1 < len(p) {
		s := uint16(c.GenerateSample())
		binary.LittleEndian.PutUint16(p[n:], s)
		n += 2
	}
	if n < len(p) {
		s := uint16(c.GenerateSample())
		p[n] = byte(s)
		c.readLeftover = byte(s >> 8)
		c.haveLeftover = true
		n++
	}
	return n, nil
}

func (c *SFXChip) publishStatus() {
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		v := c.voices[ch]
		if v.state == VoiceIdle {
			c.statusSlot[ch].Store(STATUS_IDLE)
			c.statusNote[ch].Store(STATUS_IDLE)
		} else {
			c.statusSlot[ch].Store(uint32(v.slot))
			c.statusNote[ch].Store(uint32(v.noteIdx))
		}
	}
	c.seq.publishStatus()

	c.tickPhase++
	if c.tickPhase >= SAMPLES_PER_TICK {
		c.tickPhase = 0
		c.statusTick.Add(1)
	}
}

// Reset returns every block to power-on state. Call only while no backend
// is pulling samples.
func (c *SFXChip) Reset() {
	c.enabled.Store(false)
	c.sfxBase.Store(0)
	c.musicBase.Store(0)
	c.noteAtk.Store(DEFAULT_NOTE_ATK)
	c.noteRel.Store(DEFAULT_NOTE_REL)
	c.musicFade.Store(0)
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		c.fxOverride[ch].Store(0)
		c.statusSlot[ch].Store(STATUS_IDLE)
		c.statusNote[ch].Store(STATUS_IDLE)
		c.pending[ch] = pendingPlay{}
	}
	c.statusPattern.Store(STATUS_IDLE)
	c.statusPatTick.Store(0)
	c.statusTick.Store(0)
	c.cmdHead.Store(c.cmdTail.Load())
	c.loader.Reset()
	for _, v := range c.voices {
		v.Reset()
	}
	c.seq.Reset()
	c.tickPhase = 0
	c.haveLeftover = false
}
