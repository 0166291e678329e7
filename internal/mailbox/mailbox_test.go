package mailbox_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextest-rs/nextest-sub001/internal/mailbox"
)

func TestUnbounded_FIFOOrder(t *testing.T) {
	m := mailbox.New[int]()
	defer m.Close()

	for i := 0; i < 100; i++ {
		m.Send(i)
	}

	for i := 0; i < 100; i++ {
		select {
		case v := <-m.Out():
			require.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}

func TestUnbounded_SendNeverBlocks(t *testing.T) {
	m := mailbox.New[int]()
	defer m.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10_000; i++ {
			m.Send(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked unexpectedly under no-consumer backpressure")
	}

	drained := 0
	for drained < 10_000 {
		select {
		case <-m.Out():
			drained++
		case <-time.After(2 * time.Second):
			t.Fatalf("only drained %d of 10000", drained)
		}
	}
}

func TestUnbounded_CloseDrainsThenClosesOut(t *testing.T) {
	m := mailbox.New[string]()
	m.Send("a")
	m.Send("b")
	m.Close()

	got := make([]string, 0, 2)
	for v := range m.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnbounded_SendAfterCloseIsDropped(t *testing.T) {
	m := mailbox.New[int]()
	m.Close()
	m.Send(1) // must not panic, must not appear on Out()

	_, ok := <-m.Out()
	assert.False(t, ok, "Out() must be closed with nothing pending")
}

func TestUnbounded_ConcurrentProducers(t *testing.T) {
	m := mailbox.New[int]()

	const producers = 20
	const perProducer = 50
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Send(i)
			}
		}()
	}

	received := 0
	go func() {
		wg.Wait()
		m.Close()
	}()
	for range m.Out() {
		received++
	}
	assert.Equal(t, producers*perProducer, received)
}
