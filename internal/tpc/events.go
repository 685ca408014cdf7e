package tpc

import (
	"sync"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/pion/webrtc/v4"
)

// EventKind enumerates the events a TPC emits, per spec.md §4.3.
type EventKind int

const (
	EventRemoteTrackAdded EventKind = iota
	EventRemoteTrackRemoved
	EventICEConnectionStateChanged
	EventConnectionStateChanged
	EventLocalUfragChanged
	EventRemoteUfragChanged
	EventLocalTrackSSRCUpdated
	EventLocalTrackMaxEnabledResolutionChanged
	EventCreateOfferFailed
	EventCreateAnswerFailed
	EventSetLocalDescriptionFailed
	EventSetRemoteDescriptionFailed
)

// Event is the single event type delivered to subscribers, carrying
// whichever payload fields are relevant to its Kind. Unused fields are
// left at their zero value.
type Event struct {
	Kind EventKind

	RemoteTrack *RemoteTrack
	ICEState    webrtc.ICEConnectionState
	ConnState   webrtc.PeerConnectionState
	Ufrag       string
	SourceName  string
	OldSSRC     uint32
	NewSSRC     uint32
	MaxHeight   int
	Err         error
}

// RemoteTrack is a bound remote track, per the Remote Track data model in
// spec.md §3.
type RemoteTrack struct {
	OwnerEndpointID string
	SourceName      string
	SSRC            uint32
	MediaType       rtcconfig.MediaType
	Muted           bool
	VideoType       string
	Track           *webrtc.TrackRemote
	Receiver        *webrtc.RTPReceiver
}

// bus is a simple multi-subscriber fan-out, replacing the single-slot
// callback fields the teacher's sfuPeer/client wire up one-at-a-time
// (OnTrack, OnICECandidate, ...): TPC has several independent consumers
// (the coordinator, stats, tests), so subscribe/unsubscribe replaces one
// overwritable callback per event.
type bus struct {
	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func newBus() *bus {
	return &bus{subs: map[int]chan Event{}}
}

// Subscribe returns a channel of every event this TPC emits, and an
// unsubscribe function. The channel is buffered; a slow subscriber drops
// events rather than blocking emission.
func (b *bus) Subscribe() (<-chan Event, func()) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, 64)
	b.subs[id] = ch
	return ch, func() {
		b.subsMu.Lock()
		defer b.subsMu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *bus) emit(ev Event) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
