// Package tpc implements the Traceable Peer Connection: a wrapper over a
// pion/webrtc PeerConnection that rewrites session descriptions through
// the sdpmodel munging pipeline, tracks local/remote sources, and
// reconciles SSRC identity with the signalling layer across
// renegotiations.
package tpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/n0remac/rtc-core/internal/codec"
	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/rtcerrors"
	"github.com/n0remac/rtc-core/internal/sdpmodel"
	"github.com/n0remac/rtc-core/internal/signalling"
	"github.com/n0remac/rtc-core/internal/simulcast"
	"github.com/n0remac/rtc-core/internal/ssrc"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// SessionKind distinguishes the two peer-connection topologies the
// munging pipeline treats differently (P2P direction adjustment and codec
// stripping apply only to the p2p case).
type SessionKind int

const (
	SessionSFU SessionKind = iota
	SessionP2P
)

// LocalSource identifies a local track attached to this TPC, per the Local
// Track data model in spec.md §3.
type LocalSource struct {
	RTCID      string
	SourceName string
	MediaType  rtcconfig.MediaType
	VideoType  rtcconfig.VideoType
	Track      webrtc.TrackLocal
}

type localSourceState struct {
	source      LocalSource
	sender      *webrtc.RTPSender
	transceiver *webrtc.RTPTransceiver
	muted       bool
	maxHeight   int
}

// Config is the per-TPC configuration, a view over rtcconfig.Options plus
// the session kind and dependencies that must be supplied by the host
// process.
type Config struct {
	Options       rtcconfig.Options
	Kind          SessionKind
	Signalling    signalling.Layer
	Logger        zerolog.Logger
	PauseStrategy rtcconfig.PauseStrategy
}

// TPC owns exactly one native peer connection plus bookkeeping, per
// spec.md §4.3.
type TPC struct {
	cfg Config
	pc  *webrtc.PeerConnection
	bus *bus

	codecPolicy Policy
	rtx         *ssrc.RtxModifier
	registry    *ssrc.Registry

	mu           sync.Mutex
	localSources map[string]*localSourceState // keyed by RTCID
	remoteTracks map[remoteTrackKey]*RemoteTrack

	localUfrag  string
	remoteUfrag string

	// chainMu serializes sender setParameters calls: spec.md §4.2 requires
	// a new update to await the previous one settling before issuing the
	// next setParameters call on the underlying sender.
	chainMu sync.Mutex

	closed bool
}

// Policy is an alias for codec.Policy.
type Policy = codec.Policy

type remoteTrackKey struct {
	endpointID string
	mediaType  rtcconfig.MediaType
}

// New wraps an already-constructed native peer connection. The native
// connection's ICE servers / transport policy are the host process's
// concern (mirroring the teacher's newSFUAPI/ICEServers setup); TPC only
// wires the event handlers and munging pipeline.
func New(pc *webrtc.PeerConnection, cfg Config) *TPC {
	t := &TPC{
		cfg:          cfg,
		pc:           pc,
		bus:          newBus(),
		codecPolicy:  codec.NewPolicy(cfg.Options),
		rtx:          ssrc.NewRtxModifier(),
		registry:     ssrc.NewRegistry(),
		localSources: map[string]*localSourceState{},
		remoteTracks: map[remoteTrackKey]*RemoteTrack{},
	}
	t.wireNativeHandlers()
	return t
}

// Subscribe returns a channel of every event this TPC emits and an
// unsubscribe function.
func (t *TPC) Subscribe() (<-chan Event, func()) {
	return t.bus.Subscribe()
}

func (t *TPC) wireNativeHandlers() {
	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		t.bus.emit(Event{Kind: EventICEConnectionStateChanged, ICEState: s})
	})
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.bus.emit(Event{Kind: EventConnectionStateChanged, ConnState: s})
	})
	t.pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		t.handleRemoteTrack(remote, receiver)
	})
}

// AddTrack registers a local track through the native AddTrack, which
// creates or reuses a transceiver. No encoder policy is applied here;
// SetSenderVideoConstraints does that. Fails with ErrPolicyRejection if the
// track is already attached.
func (t *TPC) AddTrack(src LocalSource) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return rtcerrors.ErrTransportClosed
	}
	if _, exists := t.localSources[src.RTCID]; exists {
		return fmt.Errorf("tpc: add_track %s: %w", src.RTCID, rtcerrors.ErrPolicyRejection)
	}

	sender, err := t.pc.AddTrack(src.Track)
	if err != nil {
		return fmt.Errorf("tpc: add_track %s: %w", src.RTCID, err)
	}

	var transceiver *webrtc.RTPTransceiver
	for _, tr := range t.pc.GetTransceivers() {
		if tr.Sender() == sender {
			transceiver = tr
			break
		}
	}

	t.localSources[src.RTCID] = &localSourceState{
		source:      src,
		sender:      sender,
		transceiver: transceiver,
	}
	return nil
}

// RemoveTrack detaches a local track without closing the transceiver. It
// sets no direction itself: the native RemoveTrack moves the transceiver
// off sending (sendrecv becomes recvonly) on both p2p and SFU sessions, and
// no SFU-specific sendrecv direction is applied.
func (t *TPC) RemoveTrack(rtcID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.localSources[rtcID]
	if !ok {
		return fmt.Errorf("tpc: remove_track %s: %w", rtcID, rtcerrors.ErrProtocolError)
	}
	if err := t.pc.RemoveTrack(st.sender); err != nil {
		return fmt.Errorf("tpc: remove_track %s: %w", rtcID, err)
	}
	// The transceiver itself is left in place, not stopped. On p2p the
	// remote description's directions are later rewritten by
	// AdjustP2PDirection from the source counts the caller passes to
	// SetRemoteDescription.
	delete(t.localSources, rtcID)
	return nil
}

// ReplaceTrack swaps the sender's track in place, inheriting the old
// track's SSRC mapping. Returns true only when renegotiation is required —
// essentially p2p sessions; SFU sessions never renegotiate on replace, per
// spec.md §4.3.
func (t *TPC) ReplaceTrack(rtcID string, newTrack webrtc.TrackLocal) (needsRenegotiation bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.localSources[rtcID]
	if !ok {
		return false, fmt.Errorf("tpc: replace_track %s: %w", rtcID, rtcerrors.ErrProtocolError)
	}
	if err := st.sender.ReplaceTrack(newTrack); err != nil {
		return false, fmt.Errorf("tpc: replace_track %s: %w", rtcID, err)
	}
	st.source.Track = newTrack
	return t.cfg.Kind == SessionP2P, nil
}

// CreateOffer runs the native call, applies the local-description munging
// pipeline, updates the local SSRC cache, and returns the munged SDP.
func (t *TPC) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		t.bus.emit(Event{Kind: EventCreateOfferFailed, Err: err})
		return webrtc.SessionDescription{}, &rtcerrors.NegotiationFailedError{Op: "create_offer", Cause: err}
	}
	return t.mungeAndCacheLocal(offer, EventCreateOfferFailed)
}

// CreateAnswer mirrors CreateOffer for the answerer side.
func (t *TPC) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		t.bus.emit(Event{Kind: EventCreateAnswerFailed, Err: err})
		return webrtc.SessionDescription{}, &rtcerrors.NegotiationFailedError{Op: "create_answer", Cause: err}
	}
	return t.mungeAndCacheLocal(answer, EventCreateAnswerFailed)
}

func (t *TPC) mungeAndCacheLocal(desc webrtc.SessionDescription, failKind EventKind) (webrtc.SessionDescription, error) {
	parsed, err := sdpmodel.Parse(desc.Type.String(), desc.SDP)
	if err != nil {
		t.bus.emit(Event{Kind: failKind, Err: err})
		return webrtc.SessionDescription{}, &rtcerrors.NegotiationFailedError{Op: "parse_local", Cause: err}
	}

	munged := t.mungeLocal(parsed)
	out, err := sdpmodel.Serialize(munged)
	if err != nil {
		t.bus.emit(Event{Kind: failKind, Err: err})
		return webrtc.SessionDescription{}, &rtcerrors.NegotiationFailedError{Op: "serialize_local", Cause: err}
	}

	t.reconcileLocalSSRCs(munged)
	t.reconcileUfrag(munged, true)
	return webrtc.SessionDescription{Type: desc.Type, SDP: out}, nil
}

// reconcileUfrag extracts the ICE username fragment from the first media
// section and emits local-ufrag-changed/remote-ufrag-changed when it
// differs from the previously observed value.
func (t *TPC) reconcileUfrag(sd sdpmodel.SessionDescription, local bool) {
	ufrag := extractUfrag(sd)
	if ufrag == "" {
		return
	}

	t.mu.Lock()
	var changed bool
	if local {
		changed = t.localUfrag != ufrag
		t.localUfrag = ufrag
	} else {
		changed = t.remoteUfrag != ufrag
		t.remoteUfrag = ufrag
	}
	t.mu.Unlock()

	if !changed {
		return
	}
	kind := EventLocalUfragChanged
	if !local {
		kind = EventRemoteUfragChanged
	}
	t.bus.emit(Event{Kind: kind, Ufrag: ufrag})
}

func extractUfrag(sd sdpmodel.SessionDescription) string {
	for _, m := range sd.Media {
		for _, a := range m.OtherAttrs {
			if a.Key == "ice-ufrag" {
				return a.Value
			}
		}
	}
	return ""
}

// mungeLocal runs the local-description munging pipeline in the order
// spec.md §4.1 specifies: Opus parameters, codec order, max-bitrate
// bandwidth line, Dependency Descriptor reconciliation, RTX pairing.
func (t *TPC) mungeLocal(sd sdpmodel.SessionDescription) sdpmodel.SessionDescription {
	aq := t.cfg.Options.AudioQuality
	sd = sdpmodel.MungeOpusParameters(sd, sdpmodel.OpusParams{
		Stereo:            aq.Stereo,
		DTX:               aq.EnableOpusDTX,
		MaxAverageBitrate: aq.OpusMaxAverageBitrate,
		SuppressUseDTX:    !aq.EnableOpusDTX,
	})

	stripP2P := t.cfg.Kind == SessionP2P
	sd = sdpmodel.MungeCodecOrder(sd, sdpmodel.KindVideo, t.codecPolicy.PreferredFor(rtcconfig.MediaVideo), stripP2P)

	preferred := t.codecPolicy.PreferredFor(rtcconfig.MediaVideo)
	chosenCodec := ""
	if len(preferred) > 0 {
		chosenCodec = preferred[0]
	}
	if codec.IsScalableCodec(chosenCodec) {
		asKbps := t.maxBitrateKbpsFor(chosenCodec)
		sd = sdpmodel.MungeMaxBitrateLine(sd, sdpmodel.KindVideo, asKbps)
	}

	requiresDD := codec.RequiresDependencyDescriptor(chosenCodec, !t.cfg.Options.DisableSimulcast)
	sd = sdpmodel.MungeDependencyDescriptor(sd, sdpmodel.KindVideo, sdpmodel.DependencyDescriptorURI, requiresDD)

	if !t.cfg.Options.DisableRTX {
		sd = t.rtx.Modify(sd, t.cfg.Options.DisableRTX, ssrc.RandomSSRC)
	}
	return sd
}

// maxBitrateKbpsFor picks the largest QualityHigh bitrate configured for
// the local video sources' video types, in kbps, for the AS bandwidth line.
func (t *TPC) maxBitrateKbpsFor(c string) int {
	vq := t.cfg.Options.VideoQuality
	best := 0
	for _, st := range t.localSources {
		if st.source.MediaType != rtcconfig.MediaVideo {
			continue
		}
		if byLevel, ok := vq.MaxBitrateBps[st.source.VideoType]; ok {
			if v := byLevel[rtcconfig.QualityHigh]; v > best {
				best = v
			}
		}
	}
	return best / 1000
}

// mungeRemote runs the remote-description munging pipeline in the order
// spec.md §4.1 specifies.
func (t *TPC) mungeRemote(sd sdpmodel.SessionDescription, localAudioSources, remoteAudioSources, localVideoSources, remoteVideoSources int) sdpmodel.SessionDescription {
	aq := t.cfg.Options.AudioQuality
	sd = sdpmodel.MungeOpusParameters(sd, sdpmodel.OpusParams{
		Stereo:           aq.Stereo,
		DTX:              aq.EnableOpusDTX,
		MaxAverageBitrate: aq.OpusMaxAverageBitrate,
	})

	if t.cfg.Kind == SessionSFU {
		sd = sdpmodel.RewritePlanBToUnifiedPlan(sd, sdpmodel.KindVideo)
		if !t.cfg.Options.DisableSimulcast {
			sd = sdpmodel.SynthesizeSimulcastReceive(sd, sdpmodel.KindVideo, 3)
		}
	}

	sd = sdpmodel.EnforceSSRCGroupOrdering(sd)

	if t.cfg.Kind == SessionP2P {
		sd = sdpmodel.AdjustP2PDirection(sd, sdpmodel.KindVideo, localVideoSources, remoteVideoSources)
		sd = sdpmodel.AdjustP2PDirection(sd, sdpmodel.KindAudio, localAudioSources, remoteAudioSources)
	}

	preferred := t.codecPolicy.PreferredFor(rtcconfig.MediaVideo)
	sd = sdpmodel.MungeCodecOrder(sd, sdpmodel.KindVideo, preferred, t.cfg.Kind == SessionP2P)
	return sd
}

// SetLocalDescription applies the local-description munging pipeline and
// calls the native stack. ICE ufrag tracking is updated from the munged
// description before the native call, so also when that call fails.
func (t *TPC) SetLocalDescription(desc webrtc.SessionDescription) error {
	munged, err := t.mungeAndCacheLocal(desc, EventSetLocalDescriptionFailed)
	if err != nil {
		return err
	}
	if err := t.pc.SetLocalDescription(munged); err != nil {
		t.bus.emit(Event{Kind: EventSetLocalDescriptionFailed, Err: err})
		return &rtcerrors.NegotiationFailedError{Op: "set_local_description", Cause: err}
	}
	return nil
}

// SetRemoteDescription applies the remote-description munging pipeline and
// calls the native stack.
func (t *TPC) SetRemoteDescription(desc webrtc.SessionDescription, localAudioSources, remoteAudioSources, localVideoSources, remoteVideoSources int) error {
	parsed, err := sdpmodel.Parse(desc.Type.String(), desc.SDP)
	if err != nil {
		t.bus.emit(Event{Kind: EventSetRemoteDescriptionFailed, Err: err})
		return &rtcerrors.NegotiationFailedError{Op: "parse_remote", Cause: err}
	}

	munged := t.mungeRemote(parsed, localAudioSources, remoteAudioSources, localVideoSources, remoteVideoSources)
	out, err := sdpmodel.Serialize(munged)
	if err != nil {
		t.bus.emit(Event{Kind: EventSetRemoteDescriptionFailed, Err: err})
		return &rtcerrors.NegotiationFailedError{Op: "serialize_remote", Cause: err}
	}

	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: desc.Type, SDP: out}); err != nil {
		t.bus.emit(Event{Kind: EventSetRemoteDescriptionFailed, Err: err})
		return &rtcerrors.NegotiationFailedError{Op: "set_remote_description", Cause: err}
	}
	t.reconcileUfrag(munged, false)
	return nil
}

// AddICECandidate forwards to the native stack.
func (t *TPC) AddICECandidate(c webrtc.ICECandidateInit) error {
	if err := t.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("tpc: add_ice_candidate: %w", err)
	}
	return nil
}

// reconcileLocalSSRCs extracts SSRC identity from the munged local
// description and emits local-track-ssrc-updated for any source whose
// primary SSRC changed, per spec.md §4.1 "SSRC extraction".
func (t *TPC) reconcileLocalSSRCs(sd sdpmodel.SessionDescription) {
	updates := t.registry.Reconcile(sd)
	for _, u := range updates {
		t.bus.emit(Event{
			Kind:    EventLocalTrackSSRCUpdated,
			OldSSRC: u.OldPrimary,
			NewSSRC: u.NewPrimary,
		})
	}
}

// Close closes the native peer connection and removes every remote track,
// emitting remote-track-removed for each. Idempotent.
func (t *TPC) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	remaining := make([]*RemoteTrack, 0, len(t.remoteTracks))
	for _, rt := range t.remoteTracks {
		remaining = append(remaining, rt)
	}
	t.remoteTracks = map[remoteTrackKey]*RemoteTrack{}
	t.mu.Unlock()

	for _, rt := range remaining {
		t.bus.emit(Event{Kind: EventRemoteTrackRemoved, RemoteTrack: rt})
	}
	return t.pc.Close()
}

// SimulcastPolicy exposes the simulcast encoder-policy resolver used by
// SetSenderVideoConstraints, factored out so tests can call it directly.
var SimulcastPolicy simulcast.EncoderPolicy
