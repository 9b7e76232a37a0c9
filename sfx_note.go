// sfx_note.go - Note and SFX record encoding/decoding

package main

// Note is one decoded 16-bit note from an SFX record.
//
// Wire encoding, low bit first:
//
//	bits 5:0   pitch (semitone index 0-63)
//	bits 8:6   waveform (0-7)
//	bits 11:9  volume (0-7)
//	bits 14:12 effect (0-7)
//	bit  15    custom instrument flag
type Note struct {
	Pitch    uint8
	Waveform uint8
	Volume   uint8
	Effect   uint8
	Custom   bool
}

// DecodeNote unpacks a 16-bit note word. Out-of-range field values cannot
// occur: every field is masked to its width.
func DecodeNote(w uint16) Note {
	return Note{
		Pitch:    uint8(w & 0x3F),
		Waveform: uint8((w >> 6) & 0x07),
		Volume:   uint8((w >> 9) & 0x07),
		Effect:   uint8((w >> 12) & 0x07),
		Custom:   w&0x8000 != 0,
	}
}

// EncodeNote packs a note back into its 16-bit wire form. DecodeNote and
// EncodeNote are exact inverses over the masked field ranges.
func EncodeNote(n Note) uint16 {
	w := uint16(n.Pitch&0x3F) |
		uint16(n.Waveform&0x07)<<6 |
		uint16(n.Volume&0x07)<<9 |
		uint16(n.Effect&0x07)<<12
	if n.Custom {
		w |= 0x8000
	}
	return w
}

// SfxRecord is one fully decoded 68-byte SFX slot: 32 notes plus the
// 4-byte header. Records are immutable once loaded; each voice keeps its
// own copy so a reload on another channel cannot disturb playback.
type SfxRecord struct {
	Notes [NOTES_PER_SFX]Note

	// Raw header bytes.
	Filters   uint8
	Speed     uint8
	LoopStart uint8
	LoopEnd   uint8

	// Derived header fields.
	NoiseEnable bool  // filters bit1
	BuzzEnable  bool  // filters bit2
	Detune      uint8 // (filters/8)%3
	Reverb      uint8 // (filters/24)%3
	Dampen      uint8 // (filters/72)%3
	Bass        bool  // speed bit0: half-frequency playback
	WaveBank    bool  // loop_start bit7: waveform/PCM instrument (slots 0-7)
}

// DecodeRecord assembles a record from its 34 memory words: 32 note words
// followed by two header words ({filters,speed} and {loop_start,loop_end},
// big-endian byte packing within each word).
func DecodeRecord(words [SFX_RECORD_WORDS]uint16) SfxRecord {
	var rec SfxRecord
	for i := 0; i < NOTES_PER_SFX; i++ {
		rec.Notes[i] = DecodeNote(words[i])
	}

	rec.Filters = uint8(words[32] >> 8)
	rec.Speed = uint8(words[32])
	loopStart := uint8(words[33] >> 8)
	rec.LoopEnd = uint8(words[33]) & 0x1F

	rec.WaveBank = loopStart&0x80 != 0
	rec.LoopStart = loopStart & 0x1F

	rec.NoiseEnable = rec.Filters&0x02 != 0
	rec.BuzzEnable = rec.Filters&0x04 != 0
	rec.Detune = (rec.Filters / 8) % 3
	rec.Reverb = (rec.Filters / 24) % 3
	rec.Dampen = (rec.Filters / 72) % 3
	rec.Bass = rec.Speed&0x01 != 0

	return rec
}

// EffectiveSpeed returns the notes-per-tick divisor, with the degenerate
// speed 0 treated as 1.
func (r *SfxRecord) EffectiveSpeed() int {
	if r.Speed == 0 {
		return 1
	}
	return int(r.Speed)
}
