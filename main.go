// main.go - sfxengine command line player

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

func main() {
	sfxSlot := flag.Int("sfx", -1, "play one SFX slot and exit when it finishes")
	channel := flag.Int("channel", ChannelAuto, "channel 0-3, or -1 for auto")
	offset := flag.Int("offset", 0, "starting note offset 0-31")
	length := flag.Int("length", 0, "note count, 0 = record loop header, 255 = forever")
	music := flag.Int("music", -1, "start music playback at this pattern")
	fade := flag.Int("fade", 0, "music fade in/out length in frames")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] bank.p8sfx\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	backend, err := NewAudioOutput()
	if err != nil {
		fatalf("audio init: %v", err)
	}
	player := NewSFXPlayer(backend)
	if err := player.LoadFile(flag.Arg(0)); err != nil {
		fatalf("%v", err)
	}
	if err := player.Start(); err != nil {
		fatalf("audio start: %v", err)
	}
	defer player.Stop()

	switch {
	case *sfxSlot >= 0:
		if err := player.Play(*sfxSlot, *channel, *offset, *length); err != nil {
			fatalf("%v", err)
		}
		waitForSilence(player)

	case *music >= 0:
		if err := player.PlayMusic(*music, 0, *fade); err != nil {
			fatalf("%v", err)
		}
		runKeyboard(player, *music, *fade)

	default:
		runKeyboard(player, 0, *fade)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// waitForSilence polls channel status until every voice is idle. A small
// trailing sleep lets the device buffer drain.
func waitForSilence(p *SFXPlayer) {
	for {
		busy := false
		for ch := 0; ch < NUM_CHANNELS; ch++ {
			if p.IsPlaying(ch) {
				busy = true
			}
		}
		if !busy {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
}

// runKeyboard is the interactive loop: raw-mode single-key control over
// slot selection, playback and the music sequencer.
func runKeyboard(p *SFXPlayer, musicPattern, fade int) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no terminal, streaming until interrupted: %v\n", err)
		select {}
	}
	defer term.Restore(fd, oldState)

	slot := 0
	fmt.Printf("keys: +/- slot  space play  r release  s stop  m music  q quit\r\n")
	fmt.Printf("slot %02d\r\n", slot)

	buf := make([]byte, 1)
	musicOn := p.MusicPlaying()
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return
		}
		switch buf[0] {
		case 'q', 3: // ctrl-c
			return
		case '+', '=':
			slot = (slot + 1) % NUM_SFX_SLOTS
			fmt.Printf("slot %02d\r\n", slot)
		case '-', '_':
			slot = (slot + NUM_SFX_SLOTS - 1) % NUM_SFX_SLOTS
			fmt.Printf("slot %02d\r\n", slot)
		case ' ', '\r':
			if err := p.Play(slot, ChannelAuto, 0, 0); err != nil {
				fmt.Printf("%v\r\n", err)
			}
		case 'r':
			p.ReleaseSFX(ChannelAll)
		case 's':
			p.StopSFX(ChannelAll)
		case 'm':
			if musicOn {
				p.StopMusic(fade)
				musicOn = false
			} else if err := p.PlayMusic(musicPattern, 0, fade); err != nil {
				fmt.Printf("%v\r\n", err)
			} else {
				musicOn = true
			}
		}
	}
}
