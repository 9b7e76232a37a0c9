// sfx_loader.go - Shared SFX record fetch arbiter

package main

// SFXLoader fetches 68-byte SFX records from the memory port on behalf of
// the eight voices. It reads exactly one 16-bit word per output sample
// (mirroring the request/acknowledge cadence of the memory handshake), so
// a record completes about 34 samples after the arbiter picks it up and
// the render path never blocks on memory.
//
// Fairness: at most one request is in flight per voice, one request is
// serviced at a time, and when a request completes the next pending voice
// is chosen by scanning round-robin from just past the last served index.
type SFXLoader struct {
	mem  MemoryBus
	base uint32 // SFX bank base, word address

	pending [NUM_VOICES]loadRequest
	current int // voice currently being served, -1 when none
	last    int // last served voice, round-robin scan origin
	wordIdx int
	buf     [SFX_RECORD_WORDS]uint16
}

type loadRequest struct {
	slot   uint8
	active bool
}

func NewSFXLoader(mem MemoryBus) *SFXLoader {
	return &SFXLoader{
		mem:     mem,
		current: -1,
		last:    NUM_VOICES - 1,
	}
}

func (l *SFXLoader) SetBase(base uint32) {
	l.base = base
}

// Request queues a record fetch for a voice, replacing any fetch already
// queued or in flight for that voice (single-flight per voice).
func (l *SFXLoader) Request(voice int, slot uint8) {
	l.pending[voice] = loadRequest{slot: slot, active: true}
	if l.current == voice {
		l.wordIdx = 0
	}
}

// Cancel discards a voice's pending or in-flight fetch. Used by force-stop,
// which may land mid-load.
func (l *SFXLoader) Cancel(voice int) {
	l.pending[voice].active = false
	if l.current == voice {
		l.current = -1
		l.wordIdx = 0
	}
}

// Tick performs one word read. When a record completes it returns the
// voice index and the decoded record; otherwise voice is -1. Completion is
// signalled exactly once per accepted request.
func (l *SFXLoader) Tick() (voice int, rec SfxRecord, done bool) {
	if l.current < 0 {
		l.current = l.nextPending()
		l.wordIdx = 0
		if l.current < 0 {
			return -1, rec, false
		}
	}

	req := &l.pending[l.current]
	addr := l.base + uint32(req.slot)*SFX_RECORD_WORDS + uint32(l.wordIdx)
	l.buf[l.wordIdx] = l.mem.ReadWord(addr)
	l.wordIdx++

	if l.wordIdx < SFX_RECORD_WORDS {
		return -1, rec, false
	}

	served := l.current
	req.active = false
	l.last = served
	l.current = -1
	l.wordIdx = 0
	return served, DecodeRecord(l.buf), true
}

// nextPending scans for a pending request starting just past the last
// served voice, wrapping once around all eight voices.
func (l *SFXLoader) nextPending() int {
	for i := 1; i <= NUM_VOICES; i++ {
		v := (l.last + i) % NUM_VOICES
		if l.pending[v].active {
			return v
		}
	}
	return -1
}

// Busy reports whether a fetch is pending or in flight for the voice.
func (l *SFXLoader) Busy(voice int) bool {
	return l.pending[voice].active
}

func (l *SFXLoader) Reset() {
	for i := range l.pending {
		l.pending[i] = loadRequest{}
	}
	l.current = -1
	l.last = NUM_VOICES - 1
	l.wordIdx = 0
}
