package ssrc

import (
	"testing"

	"github.com/n0remac/rtc-core/internal/sdpmodel"
	"github.com/stretchr/testify/require"
)

func videoSectionWithPrimary(primary uint32) sdpmodel.MediaSection {
	return sdpmodel.MediaSection{
		Kind: sdpmodel.KindVideo,
		SSRCAttrs: []sdpmodel.SSRCAttribute{
			{SSRC: primary, Attribute: "cname", Value: "c"},
			{SSRC: primary, Attribute: "msid", Value: "stream track"},
		},
	}
}

func TestRtxPairingStability(t *testing.T) {
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{videoSectionWithPrimary(111)}}
	mod := NewRtxModifier()

	nextID := uint32(1000)
	gen := func() uint32 { nextID++; return nextID }

	first := mod.Modify(sd, false, gen)
	second := mod.Modify(sd, false, gen)

	firstRTX := first.Media[0].SSRCGroups[0].SSRCs[1]
	secondRTX := second.Media[0].SSRCGroups[0].SSRCs[1]
	require.Equal(t, firstRTX, secondRTX, "RTX SSRC must stay stable across renegotiations")

	mod.Clear()
	third := mod.Modify(sd, false, gen)
	thirdRTX := third.Media[0].SSRCGroups[0].SSRCs[1]
	// Not required to differ, but every primary must still have exactly one FID group.
	require.Len(t, third.Media[0].SSRCGroups, 1)
	require.Equal(t, "FID", third.Media[0].SSRCGroups[0].Semantics)
	_ = thirdRTX
}

func TestRtxModifierDisableRTX(t *testing.T) {
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{videoSectionWithPrimary(111)}}
	mod := NewRtxModifier()
	out := mod.Modify(sd, true, func() uint32 { return 9999 })
	require.Empty(t, out.Media[0].SSRCGroups)
}

func TestRtxModifierNoFIDForAlreadyPairedPrimary(t *testing.T) {
	m := videoSectionWithPrimary(111)
	m.SSRCAttrs = append(m.SSRCAttrs,
		sdpmodel.SSRCAttribute{SSRC: 222, Attribute: "cname", Value: "c"},
		sdpmodel.SSRCAttribute{SSRC: 222, Attribute: "msid", Value: "stream track"},
	)
	m.SSRCGroups = []sdpmodel.SSRCGroup{{Semantics: "FID", SSRCs: []uint32{111, 222}}}
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{m}}

	mod := NewRtxModifier()
	out := mod.Modify(sd, false, func() uint32 { t.Fatal("should not generate a new RTX SSRC"); return 0 })
	require.Len(t, out.Media[0].SSRCGroups, 1)
}

func TestRegistryReconcileEmitsUpdateOnPrimaryChange(t *testing.T) {
	reg := NewRegistry()
	sd1 := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{videoSectionWithPrimary(111)}}
	updates := reg.Reconcile(sd1)
	require.Empty(t, updates)

	sd2 := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{videoSectionWithPrimary(222)}}
	updates = reg.Reconcile(sd2)
	require.Len(t, updates, 1)
	require.Equal(t, uint32(111), updates[0].OldPrimary)
	require.Equal(t, uint32(222), updates[0].NewPrimary)
}

func TestRegistryNoUpdateWhenPrimaryUnchanged(t *testing.T) {
	reg := NewRegistry()
	sd := sdpmodel.SessionDescription{Media: []sdpmodel.MediaSection{videoSectionWithPrimary(111)}}
	reg.Reconcile(sd)
	updates := reg.Reconcile(sd)
	require.Empty(t, updates)
}
