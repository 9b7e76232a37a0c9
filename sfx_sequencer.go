// sfx_sequencer.go - 64-pattern music playback over the four channels

package main

// MusicSequencer steps through the 64 music patterns, triggering SFX
// records on the channels a pattern claims. A pattern frame is four bytes
// (two memory words) at music_base + pattern*2:
//
//	byte N  bits 5:0  SFX slot for channel N
//	        bit 6     continue: leave channel N untouched this pattern
//	byte 0  bit 7     loop-start marker
//	byte 1  bit 7     loop-end marker (jump back to loop start after)
//	byte 2  bit 7     stop marker (halt playback after this pattern)
//
// The sequencer advances when a channel it triggered finishes its record;
// looping channels never finish, so a frame of all-looping triggers holds
// the pattern until stopped. Everything here runs on the render thread.
type MusicSequencer struct {
	chip *SFXChip

	active  bool
	pattern int
	mask    uint8
	owned   [NUM_CHANNELS]bool
	trig    [NUM_CHANNELS]bool

	loopPat  int
	loopEnd  bool
	stopNext bool

	patCount uint32

	fadeLevel int32 // Q15 master level for owned channels
	fadeStep  int32 // signed per-sample delta; fade-out stops at zero
}

func NewMusicSequencer(chip *SFXChip) *MusicSequencer {
	return &MusicSequencer{chip: chip, fadeLevel: fxOne}
}

// Start begins playback at a pattern. mask selects which channels the
// music may use (0 means all four). fadeFrames > 0 ramps the music level
// up from silence over that many ticks.
func (m *MusicSequencer) Start(pattern int, mask uint8, fadeFrames int) {
	m.stopOwned()
	m.active = true
	m.pattern = pattern & (NUM_MUSIC_PATTERNS - 1)
	if mask == 0 {
		mask = 0x0F
	}
	m.mask = mask
	m.loopPat = m.pattern
	m.stopNext = false
	m.patCount = 0
	if fadeFrames > 0 {
		m.fadeLevel = 0
		m.fadeStep = fadeRampStep(fadeFrames)
	} else {
		m.fadeLevel = fxOne
		m.fadeStep = 0
	}
	m.loadFrame()
}

// Stop halts playback, immediately or by fading the music level to zero
// over fadeFrames ticks first.
func (m *MusicSequencer) Stop(fadeFrames int) {
	if !m.active {
		return
	}
	if fadeFrames <= 0 {
		m.haltNow()
		return
	}
	m.fadeStep = -fadeRampStep(fadeFrames)
}

func fadeRampStep(frames int) int32 {
	step := int32(fxOne / (frames * SAMPLES_PER_TICK))
	if step == 0 {
		step = 1
	}
	return step
}

func (m *MusicSequencer) haltNow() {
	m.stopOwned()
	m.active = false
	m.fadeLevel = fxOne
	m.fadeStep = 0
}

func (m *MusicSequencer) stopOwned() {
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		if m.owned[ch] {
			m.chip.voices[ch].ForceStop()
		}
		m.owned[ch] = false
		m.trig[ch] = false
	}
}

// channelTaken releases a channel that a manual SFX command has claimed;
// the music stops contending for it until the next frame triggers it
// again.
func (m *MusicSequencer) channelTaken(ch int) {
	m.owned[ch] = false
	m.trig[ch] = false
}

func (m *MusicSequencer) OwnsChannel(ch int) bool {
	return m.active && m.owned[ch]
}

func (m *MusicSequencer) FadeLevel() int32 {
	return m.fadeLevel
}

// loadFrame reads the current pattern's two words and applies the four
// channel bytes: set markers, then trigger non-continue channels covered
// by the mask.
func (m *MusicSequencer) loadFrame() {
	base := m.chip.musicBase.Load()
	w0 := m.chip.mem.ReadWord(base + uint32(m.pattern)*2)
	w1 := m.chip.mem.ReadWord(base + uint32(m.pattern)*2 + 1)
	bytes := [NUM_CHANNELS]uint8{
		uint8(w0 >> 8), uint8(w0), uint8(w1 >> 8), uint8(w1),
	}

	if bytes[0]&0x80 != 0 {
		m.loopPat = m.pattern
	}
	m.loopEnd = bytes[1]&0x80 != 0
	m.stopNext = bytes[2]&0x80 != 0

	for ch := 0; ch < NUM_CHANNELS; ch++ {
		m.trig[ch] = false
		if m.mask&(1<<ch) == 0 {
			continue
		}
		b := bytes[ch]
		if b&0x40 != 0 {
			// Continue: the channel keeps whatever it was doing.
			continue
		}
		m.owned[ch] = true
		m.trig[ch] = true
		m.chip.voices[ch].Start(b&0x3F, 0, 0)
	}
}

// TickSample advances the fade ramp and the pattern position by one
// sample's worth.
func (m *MusicSequencer) TickSample() {
	if !m.active {
		return
	}

	if m.fadeStep != 0 {
		m.fadeLevel += m.fadeStep
		if m.fadeLevel >= fxOne {
			m.fadeLevel = fxOne
			m.fadeStep = 0
		} else if m.fadeLevel <= 0 {
			m.haltNow()
			return
		}
	}

	if m.frameFinished() {
		m.advance()
	}
}

// frameFinished reports whether a channel this frame triggered has played
// its record to completion. Channels still warming up have not finished.
func (m *MusicSequencer) frameFinished() bool {
	any := false
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		if !m.trig[ch] {
			continue
		}
		any = true
		if m.chip.voices[ch].state == VoiceIdle && !m.chip.loader.Busy(ch) {
			return true
		}
	}
	// A frame of pure continues advances as soon as every owned channel
	// has drained. With nothing owned at all (every channel stolen or
	// never claimed) the sequencer holds rather than free-running.
	if !any {
		hasOwned := false
		for ch := 0; ch < NUM_CHANNELS; ch++ {
			if !m.owned[ch] {
				continue
			}
			hasOwned = true
			if m.chip.voices[ch].state != VoiceIdle {
				return false
			}
		}
		return hasOwned
	}
	return false
}

func (m *MusicSequencer) advance() {
	switch {
	case m.stopNext:
		m.haltNow()
		return
	case m.loopEnd:
		m.pattern = m.loopPat
	default:
		m.pattern = (m.pattern + 1) & (NUM_MUSIC_PATTERNS - 1)
	}
	m.patCount++
	m.loadFrame()
}

func (m *MusicSequencer) publishStatus() {
	if m.active {
		m.chip.statusPattern.Store(uint32(m.pattern))
	} else {
		m.chip.statusPattern.Store(STATUS_IDLE)
	}
	m.chip.statusPatTick.Store(m.patCount)
}

func (m *MusicSequencer) Reset() {
	m.active = false
	m.pattern = 0
	m.mask = 0
	m.loopPat = 0
	m.loopEnd = false
	m.stopNext = false
	m.patCount = 0
	m.fadeLevel = fxOne
	m.fadeStep = 0
	for ch := range m.owned {
		m.owned[ch] = false
		m.trig[ch] = false
	}
}
