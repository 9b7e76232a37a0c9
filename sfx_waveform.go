// sfx_waveform.go - The eight fixed-point waveform generators

package main

// WaveState carries the small amount of generator state that survives
// between samples: the noise shift register, the brown-noise filter pole,
// the LFSR step tracker, and the cycle parity used by the buzz saw.
// One instance lives in each voice.
type WaveState struct {
	lfsr     uint32
	brown    int32
	lastStep uint32
	parity   bool
}

const (
	NOISE_LFSR_SEED = 0x7FFFFF // 23-bit maximal-length seed
	NOISE_LFSR_MASK = 0x7FFFFF
)

func (ws *WaveState) Init() {
	*ws = WaveState{lfsr: NOISE_LFSR_SEED}
}

// triSample is the base triangle shape 1-|4t-2| for t in Q15.
func triSample(t int32) int32 {
	d := (t << 2) - 2*fxOne
	if d < 0 {
		d = -d
	}
	return fxOne - d
}

// tiltSawSample ramps -1..1 over [0,break) then back down over [break,1).
func tiltSawSample(t, breakpoint int32) int32 {
	if t < breakpoint {
		return int32(int64(t)*2*fxOne/int64(breakpoint)) - fxOne
	}
	return int32(int64(fxOne-t)*2*fxOne/int64(fxOne-breakpoint)) - fxOne
}

// generateWave produces one Q15 sample for the given waveform kind.
// phase is the 32-bit phase accumulator; phase2 is the companion
// accumulator used only by the phaser. pitch feeds the noise level scaling;
// buzz and noise are the header filter flags. The function is deterministic
// given (arguments, *ws).
func generateWave(wave uint8, phase, phase2 uint32, pitch uint8, buzz, noise bool, ws *WaveState) int32 {
	t := int32(phase >> 17) // Q15 position within the cycle

	switch wave {
	case WAVE_TRIANGLE:
		v := triSample(t)
		if buzz {
			// 75/25 blend with the tilted saw gives the buzzy variant.
			v = (3*v + tiltSawSample(t, 28672)) >> 2
		}
		return v

	case WAVE_TILTED_SAW:
		breakpoint := int32(28672) // 0.875
		if buzz {
			breakpoint = 31949 // 0.975
		}
		return tiltSawSample(t, breakpoint)

	case WAVE_SAW:
		s := t
		if t >= fxOne/2 {
			s = t - fxOne
		}
		if buzz {
			if ws.parity {
				s -= 1638 // alternating-cycle harmonic offset (~0.05)
			}
			return fxMul(fxMul(s, 21397), 27197) // 0.653 then 0.83
		}
		return fxMul(s, 21397) // 0.653

	case WAVE_SQUARE:
		duty := int32(fxOne / 2)
		if buzz {
			duty = 13107 // 40%
		}
		if t < duty {
			return fxOne / 4
		}
		return -fxOne / 4

	case WAVE_PULSE:
		duty := int32(10368) // ~31.6%
		if buzz {
			duty = 8356 // ~25.5%
		}
		if t < duty {
			return fxOne / 4
		}
		return -fxOne / 4

	case WAVE_ORGAN:
		// Two triangle segments per cycle, the second at reduced swing.
		x4 := t << 2
		seg := x4 >> 15
		fr := x4 & (fxOne - 1)
		switch seg {
		case 0:
			return fr<<1 - fxOne
		case 1:
			return fxOne - fr<<1
		case 2:
			if buzz {
				return fr + fr>>1 - fxOne // extra fold: rises to +0.5
			}
			return fr - fxOne
		default:
			if buzz {
				return fxOne/2 - fr - fr>>1
			}
			return -fr
		}

	case WAVE_NOISE:
		// The LFSR is clocked 64 times per waveform cycle so the noise
		// color tracks pitch, then one-pole filtered into brown noise.
		step := phase >> 26
		if step != ws.lastStep {
			newBit := ((ws.lfsr >> 22) ^ (ws.lfsr >> 17)) & 1
			ws.lfsr = ((ws.lfsr << 1) | newBit) & NOISE_LFSR_MASK
			ws.lastStep = step
		}
		white := int32(ws.lfsr&1)*2*fxOne - fxOne
		ws.brown += (white - ws.brown) >> 3
		v := ws.brown
		if noise {
			// Brown state rides a saw carrier.
			carrier := (t - fxOne/2) << 1
			v = fxMul(v, carrier)
		}
		// Level scaling 1.5*(1+f^2), f = 1 - pitch/63. The boost can push
		// the brown state past full scale, so clamp back to Q15.
		f := fxOne - int32(pitch)*fxOne/63
		scale := fxOne + fxMul(f, f)
		scale += scale >> 1
		return satSample(fxMul(v, scale))

	case WAVE_PHASER:
		// Two triangles at slightly offset rates; buzz folds in 2x and 4x
		// harmonics and averages all four.
		t2 := int32(phase2 >> 17)
		if buzz {
			h2 := int32((phase << 1) >> 17)
			h4 := int32((phase << 2) >> 17)
			return (triSample(t) + triSample(t2) + triSample(h2) + triSample(h4)) >> 2
		}
		return (triSample(t) + triSample(t2)) >> 1
	}

	return 0
}
