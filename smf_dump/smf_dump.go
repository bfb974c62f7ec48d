// This defines a command-line utility for printing the contents of a
// standard MIDI file (SMF, usually with a ".mid" extension) as a readable
// event listing.
package main

import (
	"flag"
	"fmt"
	"github.com/acknak/ghakuf"
	"os"
)

// Prints every event the Reader decodes, numbering tracks as they start.
type eventPrinter struct {
	ghakuf.BaseHandler
	track      int
	eventCount int
}

func (p *eventPrinter) Header(format ghakuf.Format, trackCount uint16,
	division ghakuf.TimeDivision) {
	fmt.Printf("SMF %s, %d tracks, time division: %s\n", format, trackCount,
		division)
}

func (p *eventPrinter) TrackChange() {
	p.track++
	fmt.Printf("Track %d:\n", p.track)
}

func (p *eventPrinter) MetaEvent(deltaTime uint32,
	eventType ghakuf.MetaEventType, data []byte) {
	p.eventCount++
	fmt.Printf("  Time %d: meta event: %s, data: [% x]\n", deltaTime,
		eventType, data)
}

func (p *eventPrinter) MidiEvent(deltaTime uint32,
	event ghakuf.ChannelEvent) {
	p.eventCount++
	fmt.Printf("  Time %d: %s\n", deltaTime, event)
}

func (p *eventPrinter) SysExEvent(deltaTime uint32,
	eventType ghakuf.SysExEventType, data []byte) {
	p.eventCount++
	fmt.Printf("  Time %d: sysex event (%s), %d bytes\n", deltaTime,
		eventType, len(data))
}

func run() int {
	var filename string
	flag.StringVar(&filename, "input_file", "", "The .mid file to open.")
	flag.Parse()
	if filename == "" {
		fmt.Printf("Invalid arguments. Run with -help for more information.\n")
		return 1
	}
	inputFile, e := os.Open(filename)
	if e != nil {
		fmt.Printf("Couldn't open %s: %s\n", filename, e)
		return 1
	}
	defer inputFile.Close()
	printer := &eventPrinter{}
	e = ghakuf.NewReader(inputFile, printer).Read()
	if e != nil {
		fmt.Printf("Couldn't parse %s: %s\n", filename, e)
		return 1
	}
	fmt.Printf("Parsed %s OK: %d events in %d tracks.\n", filename,
		printer.eventCount, printer.track)
	return 0
}

func main() {
	os.Exit(run())
}
