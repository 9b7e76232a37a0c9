// sfx_postfx.go - Per-voice post-processing chain: reverb, dampen, crush, half-rate

package main

// dampenCoef is the one-pole lowpass smoothing coefficient per dampen
// level: bypass, mild, strong.
var dampenCoef = [3]int32{fxOne, 8192, 2048}

// crush clamp threshold before the low bits are cleared.
const crushClamp = 0x1EB7

// applyPostFX runs one sample through the voice's post-processing chain.
// Stage order is fixed: echo, then dampen, then bit-crush, then the
// half-rate sample hold. override carries the channel's FX override bits,
// which force a stage on regardless of the record header.
func (v *Voice) applyPostFX(sample int32, override uint32) int32 {
	sample = v.applyReverb(sample, override)
	sample = v.applyDampen(sample, override)

	if override&FX_FORCE_CRUSH != 0 {
		if sample > crushClamp {
			sample = crushClamp
		} else if sample < -crushClamp {
			sample = -crushClamp
		}
		sample &^= 0x3
	}

	if override&FX_FORCE_HALF_RATE != 0 {
		// Pitch already runs at half increment; holding alternate samples
		// completes the halved effective sample rate.
		if v.holdFlip {
			sample = v.heldSample
		} else {
			v.heldSample = sample
		}
		v.holdFlip = !v.holdFlip
	} else {
		v.holdFlip = false
	}

	return sample
}

// applyReverb is a single-tap feedforward echo: the dry sample is written
// into a ring and, once the ring has filled, the delayed sample is mixed
// back in at half amplitude. Level 1 uses the short delay line, level 2
// (or the override) the long one.
func (v *Voice) applyReverb(sample int32, override uint32) int32 {
	level := v.rec.Reverb
	if override&FX_FORCE_REVERB != 0 && level == 0 {
		level = 2
	}
	if level == 0 {
		return sample
	}

	ringLen := REVERB_SHORT_LEN
	if level == 2 {
		ringLen = REVERB_LONG_LEN
	}

	dry := sample
	if v.revFill >= ringLen {
		sample = satSample(sample + v.revBuf[v.revPos]>>1)
	} else {
		v.revFill++
	}
	v.revBuf[v.revPos] = dry
	v.revPos++
	if v.revPos >= ringLen {
		v.revPos = 0
	}
	return sample
}

// applyDampen is the one-pole lowpass: state += coef*(in-state). Level 0
// bypasses entirely (coef == 1 would still quantize); the override forces
// the strongest setting.
func (v *Voice) applyDampen(sample int32, override uint32) int32 {
	level := v.rec.Dampen
	if override&FX_FORCE_DAMPEN != 0 {
		level = 2
	}
	if level == 0 {
		return sample
	}

	v.dampState += fxMul(dampenCoef[level], sample-v.dampState)
	return v.dampState
}
