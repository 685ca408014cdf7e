// cmd/demo/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/n0remac/rtc-core/internal/bridge"
	"github.com/n0remac/rtc-core/internal/rtcconfig"
	"github.com/n0remac/rtc-core/internal/rtcoordinator"
	"github.com/n0remac/rtc-core/internal/sdpmodel"
	"github.com/n0remac/rtc-core/internal/signalling"
	"github.com/n0remac/rtc-core/internal/stats"
	"github.com/n0remac/rtc-core/internal/tpc"
	"github.com/pion/interceptor"
	pionwebrtc "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// noopSignalling is a stand-in for the host process's XMPP/Jingle (or
// equivalent) signalling layer: it resolves nothing and never pushes
// presence events, so every remote track binds with the default
// {muted: true, videoType: camera} info, per spec.md §4.3 step 6.
type noopSignalling struct {
	events chan signalling.LayerEvent
}

func newNoopSignalling() *noopSignalling {
	return &noopSignalling{events: make(chan signalling.LayerEvent)}
}

func (noopSignalling) SSRCOwner(uint32) (string, bool)       { return "", false }
func (noopSignalling) TrackSourceName(uint32) (string, bool) { return "", false }
func (noopSignalling) PeerMediaInfo(string, sdpmodel.MediaKind, string) (signalling.PeerMediaInfo, bool) {
	return signalling.PeerMediaInfo{}, false
}
func (n *noopSignalling) Subscribe() <-chan signalling.LayerEvent { return n.events }

func newAPI() *pionwebrtc.API {
	m := &pionwebrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		log.Fatalf("register default codecs: %v", err)
	}
	ir := &interceptor.Registry{}
	if err := pionwebrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		log.Fatalf("register default interceptors: %v", err)
	}
	return pionwebrtc.NewAPI(pionwebrtc.WithMediaEngine(m), pionwebrtc.WithInterceptorRegistry(ir))
}

func dialBridge(bridgeURL string) (*websocket.Conn, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

func main() {
	bridgeURL := flag.String("bridge", "wss://example.invalid/colibri-ws", "bridge channel WebSocket URL")
	lastN := flag.Int("lastn", -1, "initial lastN value (-1 = unlimited)")
	flag.Parse()

	logger := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	coord := rtcoordinator.New(logger)
	api := newAPI()
	sig := newNoopSignalling()

	id, t, err := coord.CreatePeerConnection(rtcoordinator.PeerConnectionOptions{
		API:        api,
		ICEServers: []pionwebrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		Options: rtcconfig.Options{
			CodecSettings: []rtcconfig.CodecSettings{
				{MediaType: rtcconfig.MediaVideo, CodecList: []string{"vp8", "vp9"}},
			},
			VideoQuality: rtcconfig.DefaultVideoQuality(),
		},
		Kind:       tpc.SessionSFU,
		Signalling: sig,
	})
	if err != nil {
		log.Fatalf("create peer connection: %v", err)
	}
	logger.Info().Int("pc_id", id).Msg("peer connection created")

	tpcEvents, unsubscribeTPC := t.Subscribe()
	defer unsubscribeTPC()
	go func() {
		for ev := range tpcEvents {
			logger.Debug().Int("kind", int(ev.Kind)).Msg("tpc event")
		}
	}()

	participants := func() int { return 2 }
	dialer := func() (*websocket.Conn, error) { return dialBridge(*bridgeURL) }
	channel := bridge.NewWebSocketChannel(dialer, participants, logger)
	coord.InitializeBridgeChannel(channel)
	channel.Open()

	coordEvents, unsubscribeCoord := coord.Subscribe()
	defer unsubscribeCoord()
	go func() {
		for ev := range coordEvents {
			logger.Info().Int("kind", int(ev.Kind)).Msg("coordinator event")
		}
	}()

	if err := coord.SetLastN(*lastN); err != nil {
		logger.Warn().Err(err).Msg("set last n")
	}

	collector := stats.NewCollector(func() (pionwebrtc.StatsReport, error) {
		snap, err := t.GetStats()
		return snap.Raw, err
	}, 64, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collector.Start(ctx)

	statsEvents, unsubscribeStats := collector.Subscribe()
	defer unsubscribeStats()
	for ev := range statsEvents {
		logger.Debug().Int("kind", int(ev.Kind)).Msg("stats event")
	}
}
