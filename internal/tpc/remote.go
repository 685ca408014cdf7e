package tpc

import (
	"strings"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/sdpmodel"
	"github.com/pion/webrtc/v4"
)

// mixedStreamID is the conference-wide stream id the SFU path uses purely
// for RTCP termination; tracks carried on it are never real sources.
const mixedStreamID = "mixed"

// handleRemoteTrack implements the remote track binding algorithm from
// spec.md §4.3.
func (t *TPC) handleRemoteTrack(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if strings.Contains(remote.StreamID(), mixedStreamID) {
		return
	}

	ssrcVal := uint32(remote.SSRC())

	endpointID := ""
	sourceName := ""
	if t.cfg.Signalling != nil {
		if id, ok := t.cfg.Signalling.SSRCOwner(ssrcVal); ok {
			endpointID = id
		}
		if name, ok := t.cfg.Signalling.TrackSourceName(ssrcVal); ok {
			sourceName = name
		}
	}

	mediaType := rtcconfig.MediaVideo
	if remote.Kind() == webrtc.RTPCodecTypeAudio {
		mediaType = rtcconfig.MediaAudio
	}

	muted, videoType := true, "camera"
	if t.cfg.Signalling != nil {
		kind := sdpmodel.KindVideo
		if mediaType == rtcconfig.MediaAudio {
			kind = sdpmodel.KindAudio
		}
		if info, ok := t.cfg.Signalling.PeerMediaInfo(endpointID, kind, sourceName); ok {
			muted, videoType = info.Muted, info.VideoType
		}
	}

	key := remoteTrackKey{endpointID: endpointID, mediaType: mediaType}

	t.mu.Lock()
	if existing, ok := t.remoteTracks[key]; ok && existing.Track == remote {
		t.mu.Unlock()
		return
	}
	rt := &RemoteTrack{
		OwnerEndpointID: endpointID,
		SourceName:      sourceName,
		SSRC:            ssrcVal,
		MediaType:       mediaType,
		Muted:           muted,
		VideoType:       videoType,
		Track:           remote,
		Receiver:        receiver,
	}
	t.remoteTracks[key] = rt
	t.mu.Unlock()

	t.bus.emit(Event{Kind: EventRemoteTrackAdded, RemoteTrack: rt})
}

// RemoveRemoteStream looks up a remote track by (streamID, trackID) and
// emits remote-track-removed, mirroring the native stream's "remove-track"
// event in spec.md §4.3. trackID is matched against the bound track's own
// ID since pion does not expose a stream-removed callback directly; a host
// process wires this from its own stream-bookkeeping layer.
func (t *TPC) RemoveRemoteStream(streamID, trackID string) {
	t.mu.Lock()
	var found *RemoteTrack
	var foundKey remoteTrackKey
	for key, rt := range t.remoteTracks {
		if rt.Track.StreamID() == streamID && rt.Track.ID() == trackID {
			found, foundKey = rt, key
			break
		}
	}
	if found != nil {
		delete(t.remoteTracks, foundKey)
	}
	t.mu.Unlock()

	if found != nil {
		t.bus.emit(Event{Kind: EventRemoteTrackRemoved, RemoteTrack: found})
	}
}
