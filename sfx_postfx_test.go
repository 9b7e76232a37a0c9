// sfx_postfx_test.go - Reverb, dampen, crush and half-rate override tests

package main

import "testing"

// toneRecord builds a square tone with the given filter byte.
func toneRecord(filters uint8) []byte {
	return encodeRecord(fillNotes(Note{Pitch: 33, Waveform: WAVE_SQUARE, Volume: 7}),
		filters, 8, 0, 0)
}

func TestReverbAddsDelayedEnergy(t *testing.T) {
	dry := newTestChip(t, testBank(map[int][]byte{0: toneRecord(0)}, nil))
	wet := newTestChip(t, testBank(map[int][]byte{0: toneRecord(24)}, nil)) // reverb 1

	playCmd(dry, 0, 0, 0, 0)
	playCmd(wet, 0, 0, 0, 0)

	// Skip past the short ring's fill window, then compare energy.
	renderN(dry, warmupSamples+REVERB_SHORT_LEN+100)
	renderN(wet, warmupSamples+REVERB_SHORT_LEN+100)
	var dryE, wetE int64
	for _, s := range renderN(dry, 1000) {
		dryE += int64(s) * int64(s)
	}
	for _, s := range renderN(wet, 1000) {
		wetE += int64(s) * int64(s)
	}
	if wetE <= dryE {
		t.Fatalf("reverb energy %d <= dry %d", wetE, dryE)
	}
}

func TestReverbSilentUntilRingFills(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: toneRecord(24)}, nil))
	playCmd(chip, 0, 0, 0, 0)

	// Inside the fill window the output must equal the plain square tone
	// levels (+-8192 after the attack ramp), no echo mixed in yet.
	renderN(chip, SFX_RECORD_WORDS+DEFAULT_NOTE_ATK+1)
	for _, s := range renderN(chip, REVERB_SHORT_LEN-DEFAULT_NOTE_ATK-8) {
		if s != fxOne/4 && s != -fxOne/4 {
			t.Fatalf("sample %d during ring fill, want bare +-%d", s, fxOne/4)
		}
	}
}

func TestDampenSmoothsEdges(t *testing.T) {
	sharp := newTestChip(t, testBank(map[int][]byte{0: toneRecord(0)}, nil))
	soft := newTestChip(t, testBank(map[int][]byte{0: toneRecord(144)}, nil)) // dampen 2

	playCmd(sharp, 0, 0, 0, 0)
	playCmd(soft, 0, 0, 0, 0)
	renderN(sharp, warmupSamples+300)
	renderN(soft, warmupSamples+300)

	maxStep := func(buf []int16) int {
		m := 0
		for i := 1; i < len(buf); i++ {
			d := int(buf[i]) - int(buf[i-1])
			if d < 0 {
				d = -d
			}
			if d > m {
				m = d
			}
		}
		return m
	}
	sharpStep := maxStep(renderN(sharp, 1000))
	softStep := maxStep(renderN(soft, 1000))
	if softStep >= sharpStep/2 {
		t.Fatalf("dampen max step %d vs sharp %d", softStep, sharpStep)
	}
}

func TestDampenOverrideForcesFilter(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: toneRecord(0)}, nil))
	chip.HandleWrite(SFX_FX_CH0, FX_FORCE_DAMPEN)
	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+300)

	// The forced one-pole can never reproduce a full-swing square edge.
	buf := renderN(chip, 1000)
	for j := 1; j < len(buf); j++ {
		d := int(buf[j]) - int(buf[j-1])
		if d < 0 {
			d = -d
		}
		if d > fxOne/4 {
			t.Fatalf("step %d with forced dampen, want smoothed output", d)
		}
	}
}

func TestCrushOverrideClearsLowBits(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: encodeRecord(
		fillNotes(Note{Pitch: 33, Waveform: WAVE_TRIANGLE, Volume: 7}), 0, 8, 0, 0)}, nil))
	chip.HandleWrite(SFX_FX_CH0, FX_FORCE_CRUSH)
	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+100)

	for _, s := range renderN(chip, 2000) {
		if s > crushClamp || s < -crushClamp {
			t.Fatalf("sample %d beyond crush clamp %d", s, crushClamp)
		}
		if s > 0 && s&0x3 != 0 {
			t.Fatalf("positive sample %d has low bits set under crush", s)
		}
	}
}

func TestHalfRateOverrideHoldsSamples(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: encodeRecord(
		fillNotes(Note{Pitch: 50, Waveform: WAVE_TRIANGLE, Volume: 7}), 0, 8, 0, 0)}, nil))
	chip.HandleWrite(SFX_FX_CH0, FX_FORCE_HALF_RATE)
	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+100)

	buf := renderN(chip, 1000)
	pairs := 0
	for i := 1; i < len(buf); i++ {
		if buf[i] == buf[i-1] {
			pairs++
		}
	}
	// Every other sample repeats its predecessor.
	if pairs < len(buf)/2-10 {
		t.Fatalf("%d repeated samples in %d, want about half", pairs, len(buf))
	}
}

func TestHalfRateOverrideHalvesPitch(t *testing.T) {
	freq := func(bits uint32) int {
		chip := newTestChip(t, testBank(map[int][]byte{0: encodeRecord(
			fillNotes(Note{Pitch: 45, Waveform: WAVE_SQUARE, Volume: 7}), 0, 8, 0, 0)}, nil))
		chip.HandleWrite(SFX_FX_CH0, bits)
		playCmd(chip, 0, 0, 0, 0)
		renderN(chip, warmupSamples+100)
		return zeroCrossings(renderN(chip, 4000))
	}
	plain := freq(0)
	half := freq(FX_FORCE_HALF_RATE)
	ratio := float64(half) / float64(plain)
	if ratio < 0.4 || ratio > 0.6 {
		t.Fatalf("half-rate crossings ratio %.2f (%d vs %d), want ~0.5", ratio, half, plain)
	}
}
