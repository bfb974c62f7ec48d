// This defines a command-line utility that parses a standard MIDI file and
// serializes it back out, optionally compressing channel voice events with
// running status. Useful for normalizing files or shrinking ones written
// without running status.
package main

import (
	"flag"
	"fmt"
	"github.com/acknak/ghakuf"
	"github.com/pkg/errors"
	"os"
)

// Collects every decoded message into a Writer, re-inserting the track
// boundaries the Writer needs: the Reader announces a track before its
// events, while the Writer expects a TrackChange after them.
type messageCollector struct {
	ghakuf.BaseHandler
	writer     *ghakuf.Writer
	trackCount int
}

func (c *messageCollector) Header(format ghakuf.Format, trackCount uint16,
	division ghakuf.TimeDivision) {
	c.writer.SetFormat(format)
	// Carry the raw division field over so SMPTE timing survives, too.
	c.writer.SetTimeBase(uint16(division))
}

func (c *messageCollector) TrackChange() {
	// The first announcement opens the first track; there's nothing to
	// close yet.
	if c.trackCount > 0 {
		c.writer.Push(ghakuf.TrackChange{})
	}
	c.trackCount++
}

func (c *messageCollector) MetaEvent(deltaTime uint32,
	eventType ghakuf.MetaEventType, data []byte) {
	c.writer.Push(&ghakuf.MetaEvent{
		DeltaTime: deltaTime,
		Type:      eventType,
		Data:      data,
	})
}

func (c *messageCollector) MidiEvent(deltaTime uint32,
	event ghakuf.ChannelEvent) {
	c.writer.Push(&ghakuf.MidiEvent{
		DeltaTime: deltaTime,
		Event:     event,
	})
}

func (c *messageCollector) SysExEvent(deltaTime uint32,
	eventType ghakuf.SysExEventType, data []byte) {
	c.writer.Push(&ghakuf.SysExEvent{
		DeltaTime: deltaTime,
		Type:      eventType,
		Data:      data,
	})
}

func rewriteFile(inputPath, outputPath string, runningStatus bool) error {
	inputFile, e := os.Open(inputPath)
	if e != nil {
		return errors.Wrapf(e, "couldn't open %s", inputPath)
	}
	defer inputFile.Close()
	collector := &messageCollector{
		writer: ghakuf.NewWriter().SetRunningStatus(runningStatus),
	}
	e = ghakuf.NewReader(inputFile, collector).Read()
	if e != nil {
		return errors.Wrapf(e, "couldn't parse %s", inputPath)
	}
	if collector.trackCount > 0 {
		collector.writer.Push(ghakuf.TrackChange{})
	}
	outputFile, e := os.Create(outputPath)
	if e != nil {
		return errors.Wrapf(e, "couldn't create %s", outputPath)
	}
	e = collector.writer.WriteToFile(outputFile)
	if e != nil {
		outputFile.Close()
		return errors.Wrapf(e, "couldn't write %s", outputPath)
	}
	e = outputFile.Close()
	if e != nil {
		return errors.Wrapf(e, "couldn't close %s", outputPath)
	}
	fmt.Printf("Rewrote %s -> %s: %d tracks, %d messages.\n", inputPath,
		outputPath, collector.trackCount, len(collector.writer.Messages()))
	return nil
}

func run() int {
	var inputPath, outputPath string
	var runningStatus, verboseErrors bool
	flag.StringVar(&inputPath, "input_file", "", "The .mid file to read.")
	flag.StringVar(&outputPath, "output_file", "", "The .mid file to write.")
	flag.BoolVar(&runningStatus, "running_status", false, "If set, compress "+
		"consecutive channel voice events using running status.")
	flag.BoolVar(&verboseErrors, "verbose_errors", false, "If set, print "+
		"stack traces with error messages.")
	flag.Parse()
	if (inputPath == "") || (outputPath == "") {
		fmt.Printf("Invalid arguments. Run with -help for more information.\n")
		return 1
	}
	e := rewriteFile(inputPath, outputPath, runningStatus)
	if e != nil {
		if verboseErrors {
			fmt.Printf("Error: %+v\n", e)
		} else {
			fmt.Printf("Error: %s\n", e)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
