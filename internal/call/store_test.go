package call

import (
	"context"
	"testing"

	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/telephony"
)

func TestMapLeg(t *testing.T) {
	cases := []struct {
		name string
		leg  *telephony.LegEvent
		want Status
	}{
		{"no leg", nil, StatusIdle},
		{"inbound ringing", &telephony.LegEvent{State: telephony.LegRinging, Direction: telephony.Inbound}, StatusIncoming},
		{"outbound ringing", &telephony.LegEvent{State: telephony.LegRinging, Direction: telephony.Outbound}, StatusActive},
		{"answered", &telephony.LegEvent{State: telephony.LegActive, Direction: telephony.Inbound}, StatusActive},
		{"ended", &telephony.LegEvent{State: telephony.LegEnded}, StatusEnded},
	}
	for _, tc := range cases {
		if got := MapLeg(tc.leg); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

// twoTabs wires an owner store and a mirror store over one in-process bus.
// pump drains the loopback provider into the owner's ApplyLeg the way the
// tab wiring does.
func twoTabs(t *testing.T) (owner, mirror *Store, lb *telephony.Loopback, pump func()) {
	t.Helper()
	bus := tabsync.NewBus(tabsync.ChannelName)
	chA := tabsync.NewChannel(bus.Endpoint(), nil)
	chB := tabsync.NewChannel(bus.Endpoint(), nil)
	t.Cleanup(chA.Close)
	t.Cleanup(chB.Close)

	lb = telephony.NewLoopback()
	owner = NewStore(lb, chA)
	mirror = NewStore(telephony.NewLoopback(), chB)
	chB.OnMessage(mirror.ApplySync)

	events, cancel := lb.Subscribe()
	t.Cleanup(cancel)
	pump = func() {
		for {
			select {
			case evt := <-events:
				owner.ApplyLeg(evt)
			default:
				return
			}
		}
	}
	return owner, mirror, lb, pump
}

func TestIncomingCallMirrorsAcrossTabs(t *testing.T) {
	owner, mirror, lb, pump := twoTabs(t)

	id := lb.Ring("A. de Vries", "+31612345678")
	pump()

	got := mirror.Current()
	if got.Status != StatusIncoming || got.ID != id {
		t.Fatalf("expected incoming %s on the mirror, got %+v", id, got)
	}
	if got.Counterparty.Name != "A. de Vries" || got.Counterparty.Address != "+31612345678" {
		t.Fatalf("counterparty not mirrored: %+v", got.Counterparty)
	}
	if mirror.Owner() {
		t.Fatal("mirror must not own the media leg")
	}
	if !owner.Owner() {
		t.Fatal("owner tab must own the media leg")
	}
}

func TestAnswerAndFlagsMirror(t *testing.T) {
	owner, mirror, lb, pump := twoTabs(t)

	lb.Ring("B. Jansen", "+31687654321")
	pump()

	if err := owner.Answer(); err != nil {
		t.Fatalf("answer: %v", err)
	}
	pump()
	if got := mirror.Current().Status; got != StatusActive {
		t.Fatalf("expected active on mirror, got %s", got)
	}
	if mirror.Current().StartedAt.IsZero() {
		t.Fatal("mirror must record a start time on answer")
	}

	if err := owner.Mute(); err != nil {
		t.Fatalf("mute: %v", err)
	}
	pump()
	if !mirror.Current().Flags.Muted {
		t.Fatalf("mute not mirrored: %+v", mirror.Current().Flags)
	}

	if err := owner.Hold(); err != nil {
		t.Fatalf("hold: %v", err)
	}
	pump()
	if !mirror.Current().Flags.OnHold {
		t.Fatalf("hold not mirrored: %+v", mirror.Current().Flags)
	}

	if err := owner.Unhold(); err != nil {
		t.Fatalf("unhold: %v", err)
	}
	pump()
	if mirror.Current().Flags.OnHold {
		t.Fatalf("unhold not mirrored: %+v", mirror.Current().Flags)
	}
}

func TestHangUpResetsBothTabsToIdle(t *testing.T) {
	owner, mirror, lb, pump := twoTabs(t)

	lb.Ring("A. de Vries", "+31612345678")
	pump()
	if err := owner.Answer(); err != nil {
		t.Fatalf("answer: %v", err)
	}
	pump()
	if err := owner.HangUp(); err != nil {
		t.Fatalf("hangup: %v", err)
	}
	pump()

	if got := owner.Current(); !got.Idle() {
		t.Fatalf("owner not idle after hangup: %+v", got)
	}
	if got := mirror.Current(); !got.Idle() {
		t.Fatalf("mirror not idle after hangup: %+v", got)
	}
	if owner.Owner() {
		t.Fatal("leg ownership must clear on hangup")
	}
}

func TestMirrorActionsNeedAMediaLeg(t *testing.T) {
	_, mirror, lb, pump := twoTabs(t)

	lb.Ring("A. de Vries", "+31612345678")
	pump()

	if err := mirror.Answer(); err != telephony.ErrNoMediaLeg {
		t.Fatalf("expected ErrNoMediaLeg from the mirror, got %v", err)
	}
	if err := mirror.Mute(); err != telephony.ErrNoMediaLeg {
		t.Fatalf("expected ErrNoMediaLeg from the mirror, got %v", err)
	}
}

func TestApplySyncIsIdempotent(t *testing.T) {
	_, mirror, lb, pump := twoTabs(t)

	id := lb.Ring("A. de Vries", "+31612345678")
	pump()

	msg := tabsync.NewMessage(tabsync.KindCallAction, tabsync.ActionPayload{SessionID: id, Action: tabsync.ActionMute})
	mirror.ApplySync(msg)
	mirror.ApplySync(msg)

	got := mirror.Current()
	if !got.Flags.Muted || got.Status != StatusIncoming || got.ID != id {
		t.Fatalf("replayed action changed more than the flag: %+v", got)
	}
}

func TestForeignSessionEventsIgnoredMidCall(t *testing.T) {
	owner, _, lb, pump := twoTabs(t)

	id := lb.Ring("A. de Vries", "+31612345678")
	pump()

	owner.ApplyLeg(&telephony.LegEvent{
		SessionID: "other-session",
		State:     telephony.LegRinging,
		Direction: telephony.Inbound,
	})
	if got := owner.Current().ID; got != id {
		t.Fatalf("foreign session replaced the live one: %s", got)
	}
}

func TestPlaceCallCarriesPendingName(t *testing.T) {
	owner, mirror, lb, pump := twoTabs(t)

	id, err := owner.PlaceCall(context.Background(), "C. Bakker", "+31201112233")
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	pump()

	got := owner.Current()
	if got.ID != id || got.Status != StatusActive {
		t.Fatalf("expected outbound ringing shown as active, got %+v", got)
	}
	if got.Counterparty.Name != "C. Bakker" {
		t.Fatalf("dial-time name lost: %+v", got.Counterparty)
	}

	lb.RemoteAnswer(id)
	pump()
	if got := mirror.Current(); got.Status != StatusActive || got.Counterparty.Name != "C. Bakker" {
		t.Fatalf("mirror missed the outbound call: %+v", got)
	}
}
