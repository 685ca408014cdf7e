package bridge

import "encoding/json"

// dispatch parses an inbound frame's colibriClass and emits the
// corresponding typed event, per spec.md §4.4's "Class (in)" table. Parse
// failures are logged and discarded; they never close the channel.
func (c *Channel) dispatch(raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.log.Debug().Err(err).Msg("bridge channel: discarding malformed frame")
		return
	}

	switch f.ColibriClass {
	case classDominantSpeakerEndpointChangeEvent:
		var m struct {
			DominantSpeakerEndpoint string   `json:"dominantSpeakerEndpoint"`
			PreviousSpeakers        []string `json:"previousSpeakers"`
			Silence                 bool     `json:"silence"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed DominantSpeakerEndpointChangeEvent")
			return
		}
		c.bus.emit(Event{Kind: EventDominantSpeakerChanged, Endpoint: m.DominantSpeakerEndpoint, Previous: m.PreviousSpeakers, Silence: m.Silence})

	case classEndpointConnectivityStatusChangeEvent:
		var m struct {
			Endpoint string `json:"endpoint"`
			Active   bool   `json:"active"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed EndpointConnectivityStatusChangeEvent")
			return
		}
		c.bus.emit(Event{Kind: EventEndpointConnStatusChanged, Endpoint: m.Endpoint, Active: m.Active})

	case classEndpointMessage:
		var m struct {
			From       string          `json:"from"`
			MsgPayload json.RawMessage `json:"msgPayload"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed EndpointMessage")
			return
		}
		c.bus.emit(Event{Kind: EventEndpointMessageReceived, From: m.From, Payload: m.MsgPayload})

	case classEndpointStats:
		var m struct {
			From    string          `json:"from"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed EndpointStats")
			return
		}
		c.bus.emit(Event{Kind: EventEndpointStatsReceived, From: m.From, Payload: m.Payload})

	case classForwardedSources:
		var m struct {
			ForwardedSources []string `json:"forwardedSources"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed ForwardedSources")
			return
		}
		c.bus.emit(Event{Kind: EventForwardedSourcesChanged, Sources: m.ForwardedSources})

	case classSenderSourceConstraints:
		var m struct {
			SourceName string `json:"sourceName"`
			MaxHeight  int    `json:"maxHeight"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.Debug().Err(err).Msg("bridge channel: malformed SenderSourceConstraints")
			return
		}
		c.bus.emit(Event{Kind: EventSenderVideoConstraintsChanged, SourceName: m.SourceName, MaxHeight: m.MaxHeight})

	case classServerHello:
		var m struct {
			Version string `json:"version"`
		}
		_ = json.Unmarshal(raw, &m)
		c.log.Info().Str("version", m.Version).Msg("bridge channel: server hello")
		c.bus.emit(Event{Kind: EventServerHello, Version: m.Version})

	case classVideoSourcesMap:
		c.bus.emit(Event{Kind: EventVideoSSRCsRemapped, Mapped: json.RawMessage(raw)})

	case classAudioSourcesMap:
		c.bus.emit(Event{Kind: EventAudioSSRCsRemapped, Mapped: json.RawMessage(raw)})

	case "":
		c.log.Debug().Msg("bridge channel: discarding frame without colibriClass")

	default:
		c.bus.emit(Event{Kind: EventUnknownClassMessage, ClassName: f.ColibriClass, Payload: json.RawMessage(raw)})
	}
}
