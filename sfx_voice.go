// sfx_voice.go - Per-channel note playback state machine

package main

// VoiceState is the playback lifecycle of one voice. A voice is in exactly
// one state; WarmUp covers the window between accepting a play request and
// the loader delivering the SFX record.
type VoiceState int

const (
	VoiceIdle VoiceState = iota
	VoiceWarmUp
	VoicePlaying
	VoiceStopping // rendering its final note
)

// Voice is one of the eight playback contexts: four primary channels and
// four paired custom-instrument sub-voices. All fields are owned by the
// render thread; nothing here is shared.
type Voice struct {
	chip  *SFXChip
	index int // 0-7 voice index (loader identity)
	ch    int // 0-3 owning channel
	isSub bool
	sub   *Voice // primaries only

	state VoiceState
	slot  uint8
	rec   SfxRecord

	startOffset int
	length      int // -1 = loop forever, 0 = header loop rules, >0 explicit
	notesPlayed int

	noteIdx      int
	tickLen      int // samples per note (183 * speed)
	tickCounter  int
	finalNote    bool
	releaseAtEnd bool
	noteBoundary bool // a note tick fired during the current sample

	cur, prev Note

	phase       uint32
	detunePhase uint32
	phaserPhase uint32
	ws          WaveState

	// Note-effect progress, 2^24 == end of note.
	prog    uint32
	progInc uint32

	vibCount int

	arpActive bool
	arpLen    int // samples per arpeggio sub-note
	arpCount  int
	arpIdx    int

	atkLen   int
	relLen   int
	envCount int

	pitchOffset int // semitone shift, custom-instrument pitch lock

	// Post-processing state (see sfx_postfx.go).
	revBuf     [REVERB_LONG_LEN]int32
	revPos     int
	revFill    int
	dampState  int32
	heldSample int32
	holdFlip   bool

	lastOut int32
}

// vibrato LFO period in samples (~7 Hz triangle)
const vibratoPeriod = 3072

// Start accepts a play request: the voice enters WarmUp and a record fetch
// is queued. length follows PlaybackRequest semantics (0 = header loop,
// SFX_LEN_FOREVER = loop through all 32 notes indefinitely).
func (v *Voice) Start(slot uint8, offset int, length int) {
	v.resetPlayback()
	v.slot = slot
	v.startOffset = offset & (NOTES_PER_SFX - 1)
	if length == SFX_LEN_FOREVER {
		v.length = -1
	} else {
		v.length = length
	}
	v.state = VoiceWarmUp
	v.chip.loader.Request(v.index, slot)
}

// startCustom (re)points a sub-voice at a waveform slot for a custom
// instrument note. The sub loops forever; the parent stops it when the
// custom flag clears. Retriggering is skipped when the sub is already
// playing the same slot, so a held instrument note stays phase-continuous.
func (v *Voice) startCustom(slot uint8, parentPitch int) {
	v.pitchOffset = parentPitch - 24
	if v.state != VoiceIdle && v.slot == slot {
		return
	}
	v.Start(slot, 0, SFX_LEN_FOREVER)
	v.pitchOffset = parentPitch - 24
}

// ForceStop drops the voice to Idle immediately, discarding any queued or
// in-flight record fetch.
func (v *Voice) ForceStop() {
	v.chip.loader.Cancel(v.index)
	if v.sub != nil {
		v.sub.ForceStop()
	}
	v.setIdle()
}

// ForceRelease rewrites loop_end = loop_start in the voice's record copy,
// turning a looping voice into a one-shot that finishes its current pass.
func (v *Voice) ForceRelease() {
	if v.state != VoicePlaying && v.state != VoiceStopping {
		return
	}
	v.rec.LoopEnd = v.rec.LoopStart
	if v.sub != nil {
		v.sub.ForceRelease()
	}
}

// onLoadComplete installs the fetched record and decodes the first note
// synchronously, seeding the tick counters exactly as the hardware's
// lookahead warm-up would leave them.
func (v *Voice) onLoadComplete(rec SfxRecord) {
	if v.state != VoiceWarmUp {
		// Cancelled mid-load; discard.
		return
	}
	v.rec = rec
	v.noteIdx = v.startOffset
	v.notesPlayed = 0
	v.state = VoicePlaying
	v.enterNote(true)
}

func (v *Voice) setIdle() {
	v.state = VoiceIdle
	if v.sub != nil {
		v.sub.ForceStop()
	}
}

func (v *Voice) resetPlayback() {
	v.state = VoiceIdle
	v.noteIdx = 0
	v.notesPlayed = 0
	v.tickCounter = 0
	v.tickLen = 0
	v.finalNote = false
	v.releaseAtEnd = false
	v.phase = 0
	v.detunePhase = 0
	v.phaserPhase = 0
	v.ws.Init()
	v.prog = 0
	v.vibCount = 0
	v.arpActive = false
	v.envCount = 0
	v.pitchOffset = 0
	v.revPos = 0
	v.revFill = 0
	v.dampState = 0
	v.heldSample = 0
	v.holdFlip = false
	v.lastOut = 0
	v.cur = Note{}
	v.prev = Note{}
}

func (v *Voice) Reset() {
	v.resetPlayback()
}

// Looping reports whether the voice, as requested, never finishes on its
// own: either the loop-forever length sentinel or header loop points that
// bounce between loop_start and loop_end.
func (v *Voice) Looping() bool {
	if v.length < 0 {
		return true
	}
	if v.length > 0 {
		return false
	}
	ls, le := v.rec.LoopStart, v.rec.LoopEnd
	return ls != le && le != 0
}

// needsRetrigger decides whether moving from note a to note b restarts the
// attack envelope (and, mirrored at the end of a, the release ramp). A
// continuing slide never retriggers; a custom-instrument note retriggers
// only when the audible parameters actually change.
func needsRetrigger(a, b Note) bool {
	if b.Effect == EFFECT_SLIDE {
		return false
	}
	if b.Custom && a.Custom &&
		b.Waveform == a.Waveform && b.Pitch == a.Pitch && b.Volume == a.Volume {
		return false
	}
	return true
}

// peekNext computes the index of the note after the current one, or
// done=true when the current note is the last. Pure: no state is touched,
// so it doubles as the release-ramp lookahead.
func (v *Voice) peekNext() (next int, done bool) {
	switch {
	case v.length < 0:
		return (v.noteIdx + 1) & (NOTES_PER_SFX - 1), false

	case v.length > 0:
		if v.notesPlayed >= v.length {
			return 0, true
		}
		return (v.noteIdx + 1) & (NOTES_PER_SFX - 1), false

	default:
		ls, le := int(v.rec.LoopStart), int(v.rec.LoopEnd)
		switch {
		case ls != 0 && le == 0:
			// Play notes [0, loop_start) once.
			if v.noteIdx+1 >= ls {
				return 0, true
			}
			return v.noteIdx + 1, false
		case ls == le:
			// Degenerate loop: play all 32 notes once.
			if v.noteIdx+1 >= NOTES_PER_SFX {
				return 0, true
			}
			return v.noteIdx + 1, false
		default:
			if v.noteIdx == le {
				return ls, false
			}
			return (v.noteIdx + 1) & (NOTES_PER_SFX - 1), false
		}
	}
}

// enterNote latches the note at noteIdx and rebuilds all per-note state:
// tick length, effect progress, arpeggio grouping, envelope trigger and
// the release lookahead for the note's tail.
func (v *Voice) enterNote(first bool) {
	if first {
		v.prev = v.rec.Notes[v.noteIdx]
	} else {
		v.prev = v.cur
	}
	v.cur = v.rec.Notes[v.noteIdx]
	v.notesPlayed++

	v.tickCounter = 0
	v.tickLen = SAMPLES_PER_TICK * v.rec.EffectiveSpeed()
	v.prog = 0
	v.progInc = noteProgressInc(v.rec.Speed)

	if v.cur.Effect == EFFECT_ARP_FAST || v.cur.Effect == EFFECT_ARP_SLOW {
		k := 4
		if v.cur.Effect == EFFECT_ARP_SLOW {
			k = 8
		}
		if v.rec.EffectiveSpeed() <= 8 {
			k >>= 1
		}
		v.arpActive = true
		v.arpLen = SAMPLES_PER_TICK * k
		v.arpCount = 0
		v.arpIdx = 0
	} else {
		v.arpActive = false
	}

	v.atkLen = v.chip.attackLen()
	v.relLen = v.chip.releaseLen()
	if first || needsRetrigger(v.prev, v.cur) {
		v.envCount = 0
	}

	next, done := v.peekNext()
	v.finalNote = done
	if done {
		v.releaseAtEnd = true
		if v.state == VoicePlaying {
			v.state = VoiceStopping
		}
	} else {
		v.releaseAtEnd = needsRetrigger(v.cur, v.rec.Notes[next])
	}

	// Custom instrument coupling: the sub-voice borrows slot = waveform,
	// pitch-locked to this note.
	if v.sub != nil {
		if v.cur.Custom {
			v.sub.startCustom(v.cur.Waveform, int(v.cur.Pitch))
		} else if v.sub.state != VoiceIdle {
			v.sub.ForceStop()
		}
	}
}

// effectiveNote resolves arpeggio cycling: with effect 6/7 the 4-note
// aligned group containing the trigger note is cycled at sub-tick rate.
func (v *Voice) effectiveNote() Note {
	if !v.arpActive {
		return v.cur
	}
	group := v.noteIdx &^ 3
	return v.rec.Notes[group+v.arpIdx]
}

// effectivePitchInc applies the pitch-bending effects (slide, vibrato,
// drop) plus the bass and half-rate octave shifts to the note's base
// phase increment.
func (v *Voice) effectivePitchInc(note Note, override uint32) uint32 {
	pitch := int(note.Pitch) + v.pitchOffset
	inc := pitchInc(pitch)

	switch v.cur.Effect {
	case EFFECT_SLIDE:
		prevInc := pitchInc(int(v.prev.Pitch) + v.pitchOffset)
		diff := int64(inc) - int64(prevInc)
		inc = uint32(int64(prevInc) + diff*int64(v.prog)>>24)

	case EFFECT_VIBRATO:
		step := int64(pitchInc(pitch+1)) - int64(inc)
		ph := int32(v.vibCount%vibratoPeriod) * fxOne / (vibratoPeriod / 2)
		lfo := fxOne - ph
		if lfo < 0 {
			lfo = -lfo
		}
		lfo = fxOne - lfo<<1 // triangle in [-1,1)
		inc = uint32(int64(inc) + step*int64(lfo)/(2*fxOne))

	case EFFECT_DROP:
		inc = uint32(int64(inc) * int64((1<<24)-v.prog) >> 24)
	}

	if v.rec.Bass {
		inc >>= 1
	}
	if override&FX_FORCE_HALF_RATE != 0 {
		inc >>= 1
	}
	return inc
}

// effectiveVolume returns the Q15 pre-envelope volume, including the
// volume-shaping effects (slide interpolation, fade in/out).
func (v *Voice) effectiveVolume(note Note) int32 {
	vol := int32(note.Volume) * fxOne / 7

	switch v.cur.Effect {
	case EFFECT_SLIDE:
		prevVol := int32(v.prev.Volume) * fxOne / 7
		vol = prevVol + int32((int64(vol)-int64(prevVol))*int64(v.prog)>>24)
	case EFFECT_FADE_IN:
		vol = int32(int64(vol) * int64(v.prog) >> 24)
	case EFFECT_FADE_OUT:
		vol = int32(int64(vol) * int64((1<<24)-v.prog) >> 24)
	}
	return vol
}

// envelopeLevel is the Q15 attack/release ramp. Attack rises linearly over
// atkLen samples from the trigger; release falls to zero across the last
// relLen samples of the note so amplitude lands on zero exactly at the
// boundary.
func (v *Voice) envelopeLevel() int32 {
	env := int32(fxOne)
	if v.envCount < v.atkLen {
		env = int32(v.envCount) * fxOne / int32(v.atkLen)
	}
	if v.releaseAtEnd && v.relLen > 0 {
		remaining := v.tickLen - v.tickCounter
		if remaining <= v.relLen {
			rel := int32(remaining) * fxOne / int32(v.relLen)
			if rel < env {
				env = rel
			}
		}
	}
	return env
}

// renderSample advances the voice by one output sample and returns its
// post-processed contribution. Sub-voices are rendered before primaries
// each sample; a parent with a custom note reads its sub's lastOut as the
// base waveform sample.
func (v *Voice) renderSample() int32 {
	v.noteBoundary = false

	switch v.state {
	case VoiceIdle, VoiceWarmUp:
		v.lastOut = 0
		return 0
	}

	if v.tickCounter >= v.tickLen {
		v.noteBoundary = true
		if v.finalNote {
			v.setIdle()
			v.lastOut = 0
			return 0
		}
		next, _ := v.peekNext()
		v.noteIdx = next
		v.enterNote(false)
	}

	override := v.chip.fxOverrideBits(v.ch)
	note := v.effectiveNote()
	inc := v.effectivePitchInc(note, override)

	var base int32
	if v.cur.Custom && !v.isSub {
		base = v.sub.lastOut
	} else {
		base = generateWave(note.Waveform, v.phase, v.phaserPhase,
			note.Pitch, v.rec.BuzzEnable, v.rec.NoiseEnable, &v.ws)

		if v.rec.Detune > 0 && note.Waveform != WAVE_NOISE {
			d := generateWave(note.Waveform, v.detunePhase, v.phaserPhase,
				note.Pitch, v.rec.BuzzEnable, v.rec.NoiseEnable, &v.ws)
			base = satSample(base + d>>1)
		}
	}

	sample := fxMul(base, v.effectiveVolume(note))
	sample = fxMul(sample, v.envelopeLevel())
	sample = v.applyPostFX(sample, override)

	// Advance phase accumulators; cycle parity feeds the buzz saw.
	old := v.phase
	v.phase += inc
	if v.phase < old {
		v.ws.parity = !v.ws.parity
	}
	v.detunePhase += detunePhaseInc(note.Waveform, v.rec.Detune, inc)
	v.phaserPhase += inc - inc>>7 // companion rate ~0.992 of base

	if v.envCount < v.atkLen {
		v.envCount++
	}
	if v.prog < 1<<24 {
		v.prog += v.progInc
		if v.prog > 1<<24 {
			v.prog = 1 << 24
		}
	}
	v.vibCount++
	if v.arpActive {
		v.arpCount++
		if v.arpCount >= v.arpLen {
			v.arpCount = 0
			v.arpIdx = (v.arpIdx + 1) & 3
		}
	}
	v.tickCounter++

	v.lastOut = sample
	return sample
}

// detunePhaseInc is the companion accumulator increment for the detune
// mix. Level 1 runs the companion 25% slow (organ and phaser instead keep
// unity rate and beat against the phaser's own offset); level 2 runs it
// 50% fast.
func detunePhaseInc(wave, level uint8, inc uint32) uint32 {
	switch level {
	case 1:
		if wave == WAVE_ORGAN || wave == WAVE_PHASER {
			return inc
		}
		return inc - inc>>2
	case 2:
		return inc + inc>>1
	}
	return 0
}
