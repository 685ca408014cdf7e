// Package rtcerrors defines the error taxonomy shared across the rtc-core
// packages: transport state errors, protocol errors, policy rejections, and
// the wrapped-cause errors surfaced when the native WebRTC stack refuses an
// operation.
package rtcerrors

import "errors"

var (
	// ErrTransportClosed means the peer connection or bridge channel is not
	// in an operable state for the requested call.
	ErrTransportClosed = errors.New("rtc-core: transport closed")

	// ErrProtocolError means an inbound SDP or channel frame was malformed.
	ErrProtocolError = errors.New("rtc-core: protocol error")

	// ErrPolicyRejection means the requested operation violates an
	// invariant, e.g. adding a track that is already attached.
	ErrPolicyRejection = errors.New("rtc-core: policy rejection")

	// ErrChannelNotOpen means a send was attempted before the bridge
	// channel reached the open state.
	ErrChannelNotOpen = errors.New("rtc-core: channel not open")
)

// NegotiationFailedError wraps a failure from create-offer, create-answer,
// set-local-description or set-remote-description at the native layer.
type NegotiationFailedError struct {
	Op    string
	Cause error
}

func (e *NegotiationFailedError) Error() string {
	return "rtc-core: negotiation failed (" + e.Op + "): " + e.Cause.Error()
}

func (e *NegotiationFailedError) Unwrap() error { return e.Cause }

// SenderParametersRejectedError wraps a rejection of setParameters by the
// native RTP sender.
type SenderParametersRejectedError struct {
	Cause error
}

func (e *SenderParametersRejectedError) Error() string {
	return "rtc-core: sender parameters rejected: " + e.Cause.Error()
}

func (e *SenderParametersRejectedError) Unwrap() error { return e.Cause }
