// sfx_constants.go - Register address map and cartridge SFX data format constants

package main

// Core timing. One note tick is 183 samples at 22050 Hz (~120 ticks/second);
// a note lasts speed ticks.
const (
	SAMPLE_RATE      = 22050
	SAMPLES_PER_TICK = 183
)

// Cartridge data format: 64 SFX slots of 68 bytes each (32 two-byte notes
// followed by a 4-byte header), and 64 music patterns of 4 bytes each.
const (
	NOTES_PER_SFX      = 32
	SFX_RECORD_BYTES   = 68
	SFX_RECORD_WORDS   = SFX_RECORD_BYTES / 2
	NUM_SFX_SLOTS      = 64
	NUM_MUSIC_PATTERNS = 64

	NUM_CHANNELS = 4
	NUM_VOICES   = 8 // 4 primary + 4 custom-instrument sub-voices
)

// Register file: F0800-F0868, one 32-bit word per register.
// VERSION and the STAT_* words are read-only; everything else is write-side
// control. SFX_CMD and MUSIC_CMD writes are queued to the render thread,
// the rest are latched atomically and sampled by the render loop.
const (
	SFX_VERSION_REG = 0xF0800
	SFX_CTRL        = 0xF0804 // bit0 = run (0 mutes the chip)
	SFX_BASE_HI     = 0xF0808 // SFX bank base, word address bits 31:16
	SFX_BASE_LO     = 0xF080C // SFX bank base, word address bits 15:0
	MUSIC_BASE_HI   = 0xF0810
	MUSIC_BASE_LO   = 0xF0814
	SFX_NOTE_ATK    = 0xF0818 // attack ramp length in samples
	SFX_NOTE_REL    = 0xF081C // release ramp lookahead in samples
	SFX_CMD         = 0xF0820
	SFX_LEN         = 0xF0824 // note length for the next play command
	MUSIC_CMD       = 0xF0828
	MUSIC_FADE      = 0xF082C // music fade in/out length in pattern frames

	SFX_FX_CH0 = 0xF0830 // hardware FX override bits, one register per channel
	SFX_FX_CH1 = 0xF0834
	SFX_FX_CH2 = 0xF0838
	SFX_FX_CH3 = 0xF083C

	SFX_STAT_CH0_SLOT = 0xF0840 // current slot index, 0xFFFF when idle
	SFX_STAT_CH1_SLOT = 0xF0844
	SFX_STAT_CH2_SLOT = 0xF0848
	SFX_STAT_CH3_SLOT = 0xF084C
	SFX_STAT_CH0_NOTE = 0xF0850 // current note index, 0xFFFF when idle
	SFX_STAT_CH1_NOTE = 0xF0854
	SFX_STAT_CH2_NOTE = 0xF0858
	SFX_STAT_CH3_NOTE = 0xF085C

	SFX_STAT_MUSIC_PAT   = 0xF0860 // current music pattern id
	SFX_STAT_MUSIC_COUNT = 0xF0864 // pattern-advance count
	SFX_STAT_TICK_COUNT  = 0xF0868 // note-tick count

	SFX_REG_END = SFX_STAT_TICK_COUNT
)

const SFX_VERSION = 0x00010000

// SFX_CMD word layout:
//
//	bit 15     valid
//	bits 14:12 channel (0-3 direct, 6 = match-slot, 7 = auto)
//	bits 11:6  starting note offset
//	bits 5:0   slot index (0x3F = stop, 0x3E = release-from-loop)
const (
	SFX_CMD_VALID   = 1 << 15
	SFX_CH_MATCH    = 6
	SFX_CH_AUTO     = 7
	SFX_IDX_STOP    = 0x3F
	SFX_IDX_RELEASE = 0x3E
)

// MUSIC_CMD word layout:
//
//	bit 14    stop
//	bit 13    start
//	bits 12:7 pattern id
//	bits 6:3  channel mask (0 = all channels)
const (
	MUSIC_CMD_STOP  = 1 << 14
	MUSIC_CMD_START = 1 << 13
)

// Channel selectors used internally by PlaybackRequest.
const (
	ChannelAuto  = -1 // pick first idle channel, else queue on channel 0
	ChannelMatch = -2 // stop every channel playing the given slot
	ChannelAll   = -3 // broadcast (stop/release only)
)

// Note length sentinel: all-ones means loop through all 32 notes forever.
const SFX_LEN_FOREVER = 0xFF

// Waveform kinds (3-bit field in the note encoding).
const (
	WAVE_TRIANGLE = iota
	WAVE_TILTED_SAW
	WAVE_SAW
	WAVE_SQUARE
	WAVE_PULSE
	WAVE_ORGAN
	WAVE_NOISE
	WAVE_PHASER
)

// Note effects (3-bit field in the note encoding).
const (
	EFFECT_NONE = iota
	EFFECT_SLIDE
	EFFECT_VIBRATO
	EFFECT_DROP
	EFFECT_FADE_IN
	EFFECT_FADE_OUT
	EFFECT_ARP_FAST
	EFFECT_ARP_SLOW
)

// Hardware FX override bits (per-channel SFX_FX_CHn registers). Each bit
// forces the corresponding stage on regardless of the per-SFX filter byte.
const (
	FX_FORCE_REVERB    = 1 << 0
	FX_FORCE_DAMPEN    = 1 << 1
	FX_FORCE_CRUSH     = 1 << 2
	FX_FORCE_HALF_RATE = 1 << 3
)

// Status word published when a channel is idle.
const STATUS_IDLE = 0xFFFF

// Reverb ring lengths in samples: ~16.6 ms and ~33 ms at 22050 Hz.
const (
	REVERB_SHORT_LEN = 366
	REVERB_LONG_LEN  = 732
)

// Default envelope ramps in samples (overridable via SFX_NOTE_ATK/REL).
const (
	DEFAULT_NOTE_ATK = 8
	DEFAULT_NOTE_REL = 16
)

// Fixed point: samples are Q15 carried in int32 (fxOne == 1.0). All
// multiplies truncate via an arithmetic shift, matching the hardware's
// truncating fixed-point pipeline.
const fxOne = 1 << 15

func fxMul(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> 15)
}

// satSample clamps a Q15 value to the representable int16 sample range.
func satSample(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
