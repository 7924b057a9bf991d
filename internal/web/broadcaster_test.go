package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tmarchal/glowbooth/internal/logic/booth"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("info", "hello")

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Level != "info" || evt.Msg != "hello" {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.BroadcastMsg("fan-out")

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Broadcasting after unsubscribe must not panic on the closed channel.
	b.BroadcastMsg("late")
}

func TestBroadcastStateCarriesSnapshot(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.BroadcastState(booth.Snapshot{SessionState: "running", Brightness: 0.8})

	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.State == nil {
			t.Fatal("event carries no state")
		}
		if evt.State.SessionState != "running" || evt.State.Brightness != 0.8 {
			t.Errorf("state = %+v", evt.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestBroadcastWriterSkipsBlankLines(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	w.Write([]byte("  \n"))
	w.Write([]byte("[GlowBooth] something happened\n"))

	select {
	case msg := <-ch:
		var evt StatusEvent
		json.Unmarshal([]byte(msg), &evt)
		if evt.Msg != "[GlowBooth] something happened" {
			t.Errorf("msg = %q (blank write should have been skipped)", evt.Msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
