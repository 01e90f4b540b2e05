package fo_test

import (
	"fmt"
	"testing"

	"fo-go/internal/fo"
)

func TestBus(t *testing.T) {
	t.Run("publish never blocks; oldest events are evicted", func(t *testing.T) {
		bus := fo.NewBus(3)
		for i := 0; i < 5; i++ {
			bus.Publish(fo.Event{Type: fo.EventFileCreated, Path: fmt.Sprintf("/f/%d", i)})
		}

		if got := bus.Dropped(); got != 2 {
			t.Errorf("Dropped() = %d, want 2", got)
		}

		// The three newest survive, in publish order.
		for i := 2; i < 5; i++ {
			ev := <-bus.Events()
			if want := fmt.Sprintf("/f/%d", i); ev.Path != want {
				t.Errorf("event path = %q, want %q", ev.Path, want)
			}
		}
	})

	t.Run("events arrive in publish order", func(t *testing.T) {
		bus := fo.NewBus(16)
		bus.Publish(fo.Event{Type: fo.EventFileCreated})
		bus.Publish(fo.Event{Type: fo.EventFileMoved})
		bus.Publish(fo.Event{Type: fo.EventFileTagged})

		want := []fo.EventType{fo.EventFileCreated, fo.EventFileMoved, fo.EventFileTagged}
		for _, w := range want {
			if ev := <-bus.Events(); ev.Type != w {
				t.Errorf("event = %s, want %s", ev.Type, w)
			}
		}
	})
}
