// audio_lut.go - Lookup tables for the pitch and note-progress generators

package main

import "math"

// pitchPhaseInc maps a semitone index (0-95) to a 32-bit phase accumulator
// increment at 22050 Hz. Index 33 is A (440 Hz); each octave doubles the
// increment. Note pitches occupy 0-63; the extra top entries give custom
// instruments headroom when the parent pitch shifts them upward.
var pitchPhaseInc [96]uint32

func init() {
	for n := range pitchPhaseInc {
		freq := 440.0 * math.Pow(2.0, float64(n-33)/12.0)
		pitchPhaseInc[n] = uint32(math.Exp2(32) * freq / SAMPLE_RATE)
	}
}

// pitchInc returns the phase increment for a semitone index, clamping to
// the table range. Indexes above 95 can occur when a custom instrument is
// shifted by a high parent pitch.
func pitchInc(pitch int) uint32 {
	if pitch < 0 {
		pitch = 0
	}
	if pitch > 95 {
		pitch = 95
	}
	return pitchPhaseInc[pitch]
}

// noteProgressInc returns the per-sample increment of the 2^24-scaled note
// progress counter for a given header speed. The counter reaches 2^24
// exactly at the note boundary (183*speed samples), driving the slide,
// fade, and drop effects.
func noteProgressInc(speed uint8) uint32 {
	s := int(speed)
	if s == 0 {
		s = 1
	}
	return uint32((1 << 24) / (SAMPLES_PER_TICK * s))
}
