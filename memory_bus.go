// memory_bus.go - Word-addressed memory read port and cartridge RAM

package main

import "sync"

// MemoryBus is the abstract memory port the SFX core consumes. Addresses
// are 16-bit word addresses; the two bytes within a word are big-endian
// packed. The core never writes through this interface, and it issues at
// most one read per output sample, so implementations need not be fast.
type MemoryBus interface {
	ReadWord(addr uint32) uint16
}

// CartridgeRAM is a plain in-memory MemoryBus backed by a word array,
// standing in for the external memory store that holds the SFX bank and
// music patterns. Reads outside the populated range return zero, which
// decodes to silent notes and a degenerate header.
type CartridgeRAM struct {
	mutex sync.RWMutex
	words []uint16
}

const DEFAULT_CART_WORDS = 64 * 1024

func NewCartridgeRAM(sizeWords int) *CartridgeRAM {
	if sizeWords <= 0 {
		sizeWords = DEFAULT_CART_WORDS
	}
	return &CartridgeRAM{words: make([]uint16, sizeWords)}
}

func (c *CartridgeRAM) ReadWord(addr uint32) uint16 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if int(addr) >= len(c.words) {
		return 0
	}
	return c.words[addr]
}

func (c *CartridgeRAM) WriteWord(addr uint32, value uint16) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if int(addr) >= len(c.words) {
		return
	}
	c.words[addr] = value
}

// LoadBytes copies raw cartridge bytes into RAM starting at the given word
// address, packing byte pairs big-endian. An odd trailing byte fills the
// high half of the final word.
func (c *CartridgeRAM) LoadBytes(wordAddr uint32, data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i := 0; i < len(data); i += 2 {
		idx := int(wordAddr) + i/2
		if idx >= len(c.words) {
			return
		}
		w := uint16(data[i]) << 8
		if i+1 < len(data) {
			w |= uint16(data[i+1])
		}
		c.words[idx] = w
	}
}

func (c *CartridgeRAM) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i := range c.words {
		c.words[i] = 0
	}
}
