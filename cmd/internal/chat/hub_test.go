package chat

import (
	"sync"
	"testing"
)

func TestPublishReachesEveryClientOfUser(t *testing.T) {
	hub := NewHub(nil)

	c1 := NewClient("conn-1", "user-a", 8)
	c2 := NewClient("conn-2", "user-a", 8)
	other := NewClient("conn-3", "user-b", 8)
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})

	for _, c := range []*Client{c1, c2} {
		select {
		case <-c.Send:
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
	select {
	case <-other.Send:
		t.Fatalf("uninvolved user received an event")
	default:
	}
}

func TestPublishDropsOnFullQueue(t *testing.T) {
	hub := NewHub(nil)

	c := NewClient("conn-1", "user-a", 1)
	hub.Register(c)

	// Fill the queue, then publish twice more; neither may block.
	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})
	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})
	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})

	if got := len(c.Send); got != 1 {
		t.Fatalf("queue len = %d, want 1", got)
	}
}

func TestPublishSkipsClosingClients(t *testing.T) {
	hub := NewHub(nil)

	c := NewClient("conn-1", "user-a", 8)
	hub.Register(c)
	c.Close()

	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})
	if got := len(c.Send); got != 0 {
		t.Fatalf("closing client received %d events", got)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)

	c := NewClient("conn-1", "user-a", 8)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	select {
	case <-c.Done():
	default:
		t.Fatalf("unregister must close the client")
	}

	hub.Publish([]string{"user-a"}, Event{Type: "message.new"})
	if got := len(c.Send); got != 0 {
		t.Fatalf("unregistered client received %d events", got)
	}
}

func TestConcurrentPublishAndChurn(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish([]string{"user-a"}, Event{Type: "message.new"})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := NewClient(wsTestID(i, j), "user-a", 4)
				hub.Register(c)
				hub.Unregister(c)
			}
		}(i)
	}
	wg.Wait()
}

func wsTestID(i, j int) string {
	return string(rune('a'+i)) + "-" + string(rune('a'+j%26))
}
