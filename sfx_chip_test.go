// sfx_chip_test.go - Register file, channel allocation and end-to-end render tests

package main

import (
	"testing"
)

// encodeRecord builds the 68-byte wire form of a record description.
func encodeRecord(notes []Note, filters, speed, loopStart, loopEnd uint8) []byte {
	out := make([]byte, SFX_RECORD_BYTES)
	for i, n := range notes {
		w := EncodeNote(n)
		out[i*2] = byte(w >> 8)
		out[i*2+1] = byte(w)
	}
	out[64] = filters
	out[65] = speed
	out[66] = loopStart
	out[67] = loopEnd
	return out
}

// fillNotes returns 32 copies of the same note.
func fillNotes(n Note) []Note {
	notes := make([]Note, NOTES_PER_SFX)
	for i := range notes {
		notes[i] = n
	}
	return notes
}

// testBank assembles a full cartridge bank image from per-slot records and
// an optional music table.
func testBank(records map[int][]byte, music []byte) []byte {
	bank := make([]byte, sfxBankBytes, sfxBankBytes+musicBankBytes)
	for slot, rec := range records {
		copy(bank[slot*SFX_RECORD_BYTES:], rec)
	}
	if music != nil {
		bank = append(bank, music...)
	}
	return bank
}

// newTestChip loads a bank into cartridge RAM and returns an enabled chip.
func newTestChip(t *testing.T, bank []byte) *SFXChip {
	t.Helper()
	cart := NewCartridgeRAM(0)
	cart.LoadBytes(0, bank)
	chip := NewSFXChip(cart)
	chip.HandleWrite(SFX_BASE_HI, 0)
	chip.HandleWrite(SFX_BASE_LO, 0)
	chip.HandleWrite(MUSIC_BASE_HI, musicBankWords>>16)
	chip.HandleWrite(MUSIC_BASE_LO, musicBankWords&0xFFFF)
	chip.HandleWrite(SFX_CTRL, 1)
	return chip
}

func playCmd(chip *SFXChip, slot, chSel, offset, length uint32) {
	chip.HandleWrite(SFX_LEN, length)
	chip.HandleWrite(SFX_CMD, SFX_CMD_VALID|chSel<<12|offset<<6|slot)
}

func renderN(chip *SFXChip, n int) []int16 {
	buf := make([]int16, n)
	chip.GenerateSamples(buf)
	return buf
}

// warmupSamples comfortably covers the 34-word record fetch.
const warmupSamples = SFX_RECORD_WORDS + 8

func defaultTone() []byte {
	return encodeRecord(fillNotes(Note{Pitch: 33, Waveform: WAVE_SQUARE, Volume: 7}),
		0, 1, 5, 0) // five notes then stop
}

func TestVersionRegister(t *testing.T) {
	chip := newTestChip(t, testBank(nil, nil))
	if got := chip.HandleRead(SFX_VERSION_REG); got != SFX_VERSION {
		t.Fatalf("version = %#x, want %#x", got, SFX_VERSION)
	}
}

func TestBaseRegisterReadback(t *testing.T) {
	chip := newTestChip(t, testBank(nil, nil))
	chip.HandleWrite(SFX_BASE_HI, 0x0001)
	chip.HandleWrite(SFX_BASE_LO, 0x2340)
	if hi := chip.HandleRead(SFX_BASE_HI); hi != 0x0001 {
		t.Errorf("base hi = %#x, want 0x0001", hi)
	}
	if lo := chip.HandleRead(SFX_BASE_LO); lo != 0x2340 {
		t.Errorf("base lo = %#x, want 0x2340", lo)
	}
}

func TestDisabledChipIsSilent(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: defaultTone()}, nil))
	chip.HandleWrite(SFX_CTRL, 0)
	playCmd(chip, 0, SFX_CH_AUTO, 0, 0)
	for i, s := range renderN(chip, 500) {
		if s != 0 {
			t.Fatalf("sample %d = %d while disabled", i, s)
		}
	}
}

func TestPlayProducesAudio(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{3: defaultTone()}, nil))
	playCmd(chip, 3, SFX_CH_AUTO, 0, 0)

	buf := renderN(chip, warmupSamples+SAMPLES_PER_TICK)
	nonzero := 0
	for _, s := range buf {
		if s != 0 {
			nonzero++
		}
	}
	if nonzero == 0 {
		t.Fatal("no audio after play command")
	}
	if got := chip.HandleRead(SFX_STAT_CH0_SLOT); got != 3 {
		t.Errorf("channel 0 slot status = %#x, want 3", got)
	}
}

func TestAutoChannelSpreadsAcrossVoices(t *testing.T) {
	records := map[int][]byte{}
	for slot := 0; slot < 4; slot++ {
		records[slot] = encodeRecord(
			fillNotes(Note{Pitch: 33, Waveform: WAVE_TRIANGLE, Volume: 7}),
			0, 4, 0, 0) // long enough to overlap
	}
	chip := newTestChip(t, testBank(records, nil))

	for slot := 0; slot < 4; slot++ {
		playCmd(chip, uint32(slot), SFX_CH_AUTO, 0, 0)
		renderN(chip, warmupSamples)
	}

	seen := map[uint32]bool{}
	for ch := 0; ch < NUM_CHANNELS; ch++ {
		slot := chip.HandleRead(SFX_STAT_CH0_SLOT + uint32(ch)*4)
		if slot == STATUS_IDLE {
			t.Fatalf("channel %d idle, want all four busy", ch)
		}
		if seen[slot] {
			t.Fatalf("slot %d assigned to two channels", slot)
		}
		seen[slot] = true
	}
}

func TestPendingPlayLastWriteWins(t *testing.T) {
	short := defaultTone() // 5 notes on channel 0
	long := encodeRecord(fillNotes(Note{Pitch: 40, Waveform: WAVE_SAW, Volume: 7}),
		0, 1, 0, 0)
	chip := newTestChip(t, testBank(map[int][]byte{0: short, 1: long, 2: long}, nil))

	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples)

	// Two queued requests while busy; only the second survives.
	playCmd(chip, 1, 0, 0, 0)
	playCmd(chip, 2, 0, 0, 0)
	renderN(chip, 6*SAMPLES_PER_TICK+warmupSamples)

	if got := chip.HandleRead(SFX_STAT_CH0_SLOT); got != 2 {
		t.Fatalf("channel 0 slot = %#x after queued plays, want 2", got)
	}
}

func TestStopSentinelSilencesChannel(t *testing.T) {
	loop := encodeRecord(fillNotes(Note{Pitch: 33, Waveform: WAVE_SQUARE, Volume: 7}),
		0, 1, 3, 10)
	chip := newTestChip(t, testBank(map[int][]byte{0: loop}, nil))

	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+SAMPLES_PER_TICK)
	if chip.HandleRead(SFX_STAT_CH0_SLOT) == STATUS_IDLE {
		t.Fatal("channel 0 never started")
	}

	playCmd(chip, SFX_IDX_STOP, 0, 0, 0)
	renderN(chip, 4)
	if got := chip.HandleRead(SFX_STAT_CH0_SLOT); got != STATUS_IDLE {
		t.Fatalf("channel 0 slot = %#x after stop, want idle", got)
	}
}

func TestReleaseSentinelEndsLoop(t *testing.T) {
	loop := encodeRecord(fillNotes(Note{Pitch: 33, Waveform: WAVE_SQUARE, Volume: 7}),
		0, 1, 3, 10)
	chip := newTestChip(t, testBank(map[int][]byte{0: loop}, nil))

	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+20*SAMPLES_PER_TICK)
	if chip.HandleRead(SFX_STAT_CH0_SLOT) == STATUS_IDLE {
		t.Fatal("looping channel went idle on its own")
	}

	playCmd(chip, SFX_IDX_RELEASE, 0, 0, 0)
	// After release the voice finishes the current pass; a full pass is at
	// most 32 notes.
	renderN(chip, 33*SAMPLES_PER_TICK)
	if got := chip.HandleRead(SFX_STAT_CH0_SLOT); got != STATUS_IDLE {
		t.Fatalf("channel 0 slot = %#x after release, want idle", got)
	}
}

func TestMatchSelectorStopsPlayingSlot(t *testing.T) {
	long := encodeRecord(fillNotes(Note{Pitch: 33, Waveform: WAVE_SQUARE, Volume: 7}),
		0, 8, 0, 0)
	chip := newTestChip(t, testBank(map[int][]byte{5: long}, nil))

	playCmd(chip, 5, 2, 0, 0) // explicitly on channel 2
	renderN(chip, warmupSamples)

	// Match stops the slot on whatever channel carries it.
	playCmd(chip, 5, SFX_CH_MATCH, 0, 0)
	renderN(chip, 4)
	if got := chip.HandleRead(SFX_STAT_CH2_SLOT); got != STATUS_IDLE {
		t.Fatalf("channel 2 slot = %#x after match stop, want idle", got)
	}

	// Match for a slot nobody is playing must not start playback.
	playCmd(chip, 9, SFX_CH_MATCH, 0, 0)
	renderN(chip, warmupSamples)
	for ch := uint32(0); ch < NUM_CHANNELS; ch++ {
		if got := chip.HandleRead(SFX_STAT_CH0_SLOT + ch*4); got != STATUS_IDLE {
			t.Fatalf("channel %d slot = %#x after unmatched match command, want idle", ch, got)
		}
	}
}

func TestNoteStatusAdvances(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: defaultTone()}, nil))
	playCmd(chip, 0, 0, 0, 0)

	renderN(chip, warmupSamples+SAMPLES_PER_TICK*2+SAMPLES_PER_TICK/2)
	if got := chip.HandleRead(SFX_STAT_CH0_NOTE); got != 2 {
		t.Fatalf("note status = %d midway through third note, want 2", got)
	}
}

func TestTickCounterRuns(t *testing.T) {
	chip := newTestChip(t, testBank(nil, nil))
	renderN(chip, SAMPLES_PER_TICK*5)
	if got := chip.HandleRead(SFX_STAT_TICK_COUNT); got != 5 {
		t.Fatalf("tick count = %d after 5 ticks of samples, want 5", got)
	}
}

func TestFourChannelMixIsStable(t *testing.T) {
	// Four loud noise channels together overdrive the mix; the clamp keeps
	// the output on the rails rather than wrapping through zero. Wrapping
	// would show up as isolated sign flips between consecutive full-scale
	// samples.
	rec := encodeRecord(fillNotes(Note{Pitch: 0, Waveform: WAVE_NOISE, Volume: 7}),
		0, 8, 0, 0)
	records := map[int][]byte{0: rec, 1: rec, 2: rec, 3: rec}
	chip := newTestChip(t, testBank(records, nil))
	for ch := uint32(0); ch < 4; ch++ {
		playCmd(chip, ch, ch, 0, 0)
	}
	buf := renderN(chip, 8000)
	nonzero := 0
	for i := 1; i < len(buf); i++ {
		if buf[i] != 0 {
			nonzero++
		}
		if (buf[i] == 32767 && buf[i-1] == -32768) ||
			(buf[i] == -32768 && buf[i-1] == 32767) {
			t.Fatalf("full-scale sign flip at sample %d", i)
		}
	}
	if nonzero == 0 {
		t.Fatal("mix produced silence")
	}
}

func TestReaderProducesLittleEndianPCM(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: defaultTone()}, nil))
	playCmd(chip, 0, 0, 0, 0)

	buf := make([]byte, 1024)
	n, err := chip.Read(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Read = (%d, %v), want (%d, nil)", n, err, len(buf))
	}
	nonzero := false
	for i := 0; i+1 < n; i += 2 {
		if buf[i] != 0 || buf[i+1] != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Fatal("Read produced pure silence during playback")
	}
}

func TestResetReturnsToPowerOn(t *testing.T) {
	chip := newTestChip(t, testBank(map[int][]byte{0: defaultTone()}, nil))
	playCmd(chip, 0, 0, 0, 0)
	renderN(chip, warmupSamples+SAMPLES_PER_TICK)

	chip.Reset()
	if chip.HandleRead(SFX_CTRL) != 0 {
		t.Error("run bit survived reset")
	}
	if chip.HandleRead(SFX_STAT_CH0_SLOT) != STATUS_IDLE {
		t.Error("channel status survived reset")
	}
	if chip.HandleRead(SFX_STAT_TICK_COUNT) != 0 {
		t.Error("tick counter survived reset")
	}
	for i, s := range renderN(chip, 100) {
		if s != 0 {
			t.Fatalf("sample %d = %d after reset", i, s)
		}
	}
}
