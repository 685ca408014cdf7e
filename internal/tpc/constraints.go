package tpc

import (
	"fmt"

	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/rtcerrors"
	"github.com/n0remac/rtc-core/internal/simulcast"
	"github.com/pion/webrtc/v4"
)

// SetSenderVideoConstraints resolves the encoder policy for a local video
// source and applies it to the sender's encoding parameters, per
// spec.md §4.2. Updates are serialized per peer connection via chainMu:
// a new update awaits the previous one settling before issuing the next
// setParameters call, because pion (like the implementations this spec was
// modeled on) invalidates the sender's parameter transaction token on each
// call and a concurrent call would be rejected.
//
// When the source is muted, only maxHeight is stored and no policy is
// resolved or sent; unmuting does not apply it, so the caller re-invokes
// this method after unmute.
func (t *TPC) SetSenderVideoConstraints(rtcID string, maxHeight int, capturedWidth, capturedHeight int) error {
	t.mu.Lock()
	st, ok := t.localSources[rtcID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("tpc: set_sender_video_constraints %s: %w", rtcID, rtcerrors.ErrProtocolError)
	}
	st.maxHeight = maxHeight
	muted := st.muted
	videoType := st.source.VideoType
	sender := st.sender
	t.mu.Unlock()

	if muted {
		return nil
	}
	if sender == nil {
		return fmt.Errorf("tpc: set_sender_video_constraints %s: %w", rtcID, rtcerrors.ErrProtocolError)
	}

	preferred := t.codecPolicy.PreferredFor(rtcconfig.MediaVideo)
	chosenCodec := ""
	if len(preferred) > 0 {
		chosenCodec = preferred[0]
	}

	layers, err := SimulcastPolicy.Resolve(simulcast.LocalTrackInfo{
		VideoType:      videoType,
		CapturedWidth:  capturedWidth,
		CapturedHeight: capturedHeight,
	}, simulcast.ResolveRequest{
		Codec:                 chosenCodec,
		RequestedMaxHeight:    maxHeight,
		SimulcastEnabled:      !t.cfg.Options.DisableSimulcast,
		CapScreenshareBitrate: t.cfg.Options.CapScreenshareBitrate,
		VideoQuality:          t.cfg.Options.VideoQuality,
	})
	if err != nil {
		return fmt.Errorf("tpc: set_sender_video_constraints %s: %w", rtcID, err)
	}

	t.chainMu.Lock()
	defer t.chainMu.Unlock()

	params := sender.GetParameters()
	applyEncodingLayers(&params, layers)
	if err := sender.SetParameters(params); err != nil {
		return &rtcerrors.SenderParametersRejectedError{Cause: err}
	}

	t.bus.emit(Event{Kind: EventLocalTrackMaxEnabledResolutionChanged, SourceName: st.source.SourceName, MaxHeight: maxHeight})
	return nil
}

func applyEncodingLayers(params *webrtc.RTPSendParameters, layers []simulcast.EncodingParams) {
	for i := range params.Encodings {
		if i >= len(layers) {
			break
		}
		l := layers[i]
		params.Encodings[i].Active = l.Active
		params.Encodings[i].MaxBitrate = uint64(l.MaxBitrateBps)
		if l.ScaleResolutionDownBy >= 1.0 {
			params.Encodings[i].ScaleResolutionDownBy = l.ScaleResolutionDownBy
		}
	}
}

// SetVideoTransferActive toggles whether send-direction video is
// transmitted without renegotiation, per spec.md §4.3 and the pause
// strategy chosen in Config.PauseStrategy (see the Open Question decision
// in DESIGN.md).
func (t *TPC) SetVideoTransferActive(rtcID string, active bool) error {
	return t.setTransferActive(rtcID, active)
}

// SetAudioTransferActive mirrors SetVideoTransferActive for audio sources.
func (t *TPC) SetAudioTransferActive(rtcID string, active bool) error {
	return t.setTransferActive(rtcID, active)
}

func (t *TPC) setTransferActive(rtcID string, active bool) error {
	t.mu.Lock()
	st, ok := t.localSources[rtcID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("tpc: set_transfer_active %s: %w", rtcID, rtcerrors.ErrProtocolError)
	}
	st.muted = !active
	sender := st.sender
	t.mu.Unlock()

	if sender == nil {
		return nil
	}

	switch t.cfg.PauseStrategy {
	case rtcconfig.PauseStrategyActiveFlag:
		t.chainMu.Lock()
		defer t.chainMu.Unlock()
		params := sender.GetParameters()
		for i := range params.Encodings {
			params.Encodings[i].Active = active
		}
		if err := sender.SetParameters(params); err != nil {
			return &rtcerrors.SenderParametersRejectedError{Cause: err}
		}
		return nil
	case rtcconfig.PauseStrategyDirectionFlip:
		// Only the mute state recorded above changes: no transceiver
		// direction is altered and no renegotiation is started, here or in
		// the coordinator, so media keeps flowing on the sender.
		return nil
	default:
		return nil
	}
}

// StatsSnapshot wraps the raw native stats report returned by GetStats;
// package stats does the normalization.
type StatsSnapshot struct {
	Raw webrtc.StatsReport
}

// GetStats returns the raw native stats report; package stats normalizes
// it into the {bandwidth, bitrate, packetLoss, resolution, transport}
// snapshot described in spec.md §4's stats collector component.
func (t *TPC) GetStats() (StatsSnapshot, error) {
	return StatsSnapshot{Raw: t.pc.GetStats()}, nil
}
