package ghakuf

// HandlerStatus tells the Reader how much more of the input a Handler
// wants to see.
type HandlerStatus int

const (
	// HandlerContinue keeps receiving every event.
	HandlerContinue HandlerStatus = iota
	// HandlerSkipTrack stops receiving events until the next track chunk
	// begins.
	HandlerSkipTrack
	// HandlerSkipAll stops receiving events for the rest of the parse.
	HandlerSkipAll
)

// Handler receives decoded SMF units from a Reader. Callbacks fire
// synchronously, in file order, on whichever goroutine drives the parse;
// when several handlers are registered they are invoked in registration
// order for each unit. Return values are never inspected apart from
// Status, which the Reader polls before delivering each unit: a handler
// reporting HandlerSkipTrack misses the remainder of the current track,
// and one reporting HandlerSkipAll misses everything further. Data slices
// passed to callbacks are freshly allocated per event and may be retained.
type Handler interface {
	// Fired once with the header chunk's fields.
	Header(format Format, trackCount uint16, division TimeDivision)
	// Fired for each meta event, including end-of-track.
	MetaEvent(deltaTime uint32, eventType MetaEventType, data []byte)
	// Fired for each channel voice event.
	MidiEvent(deltaTime uint32, event ChannelEvent)
	// Fired for each system exclusive event.
	SysExEvent(deltaTime uint32, eventType SysExEventType, data []byte)
	// Fired when a track chunk begins, before any of its events.
	TrackChange()
	// Polled by the Reader to decide whether to deliver further units.
	Status() HandlerStatus
}

// BaseHandler is a no-op implementation of Handler with a status of
// HandlerContinue. Embed it to implement only the callbacks you care
// about.
type BaseHandler struct{}

func (BaseHandler) Header(format Format, trackCount uint16, division TimeDivision) {
}

func (BaseHandler) MetaEvent(deltaTime uint32, eventType MetaEventType, data []byte) {
}

func (BaseHandler) MidiEvent(deltaTime uint32, event ChannelEvent) {}

func (BaseHandler) SysExEvent(deltaTime uint32, eventType SysExEventType, data []byte) {
}

func (BaseHandler) TrackChange() {}

func (BaseHandler) Status() HandlerStatus {
	return HandlerContinue
}
