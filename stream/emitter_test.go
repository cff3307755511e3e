package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainAll(t *testing.T, e *Emitter) ([]Packet, error) {
	t.Helper()

	var packets []Packet
	done := make(chan error, 1)
	go func() {
		done <- e.Drain(func(p Packet) error {
			packets = append(packets, p)
			return nil
		})
	}()

	select {
	case err := <-done:
		return packets, err
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not terminate")
		return nil, nil
	}
}

func TestEmitter_SuccessfulRunTerminatesWithOverallStop(t *testing.T) {
	e := NewEmitter(0)
	Run(context.Background(), e, func(ctx context.Context) error {
		e.Emit(Packet{Kind: KindMessageStart})
		e.Emit(Packet{Kind: KindMessageDelta, Text: "hello"})
		e.Emit(Packet{Kind: KindSectionEnd})
		return nil
	})

	packets, err := drainAll(t, e)
	require.NoError(t, err)
	require.Len(t, packets, 4)
	assert.Equal(t, KindMessageStart, packets[0].Kind)
	assert.Equal(t, KindMessageDelta, packets[1].Kind)
	assert.Equal(t, "hello", packets[1].Text)
	assert.Equal(t, KindOverallStop, packets[3].Kind)
}

func TestEmitter_ProducerErrorBecomesExceptionPacket(t *testing.T) {
	e := NewEmitter(0)
	boom := errors.New("llm call failed")
	Run(context.Background(), e, func(ctx context.Context) error {
		e.Emit(Packet{Kind: KindToolStart, Tool: "search"})
		return boom
	})

	packets, err := drainAll(t, e)
	require.ErrorIs(t, err, boom)
	require.Len(t, packets, 2)
	assert.Equal(t, KindException, packets[1].Kind)
	assert.Equal(t, "llm call failed", packets[1].ErrText)
}

func TestEmitter_ProducerPanicBecomesExceptionPacket(t *testing.T) {
	e := NewEmitter(0)
	Run(context.Background(), e, func(ctx context.Context) error {
		panic("nil map write")
	})

	packets, err := drainAll(t, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in stream producer")
	require.Len(t, packets, 1)
	assert.Equal(t, KindException, packets[0].Kind)
}

func TestEmitter_StepNumbersAreMonotonic(t *testing.T) {
	e := NewEmitter(64)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				e.Emit(Packet{Kind: KindToolProgress, Text: fmt.Sprintf("worker-%d", n)})
			}
		}(i)
	}
	wg.Wait()
	e.Emit(Packet{Kind: KindOverallStop})

	packets, err := drainAll(t, e)
	require.NoError(t, err)
	require.Len(t, packets, 33)
	for i, p := range packets {
		assert.Equal(t, i, p.Step)
	}
}

func TestEmitter_EmitAfterTerminalIsDropped(t *testing.T) {
	e := NewEmitter(8)
	e.Emit(Packet{Kind: KindOverallStop})
	e.Emit(Packet{Kind: KindMessageDelta, Text: "straggler"})

	packets, err := drainAll(t, e)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, KindOverallStop, packets[0].Kind)
}

func TestEmitter_DrainForwardErrorStops(t *testing.T) {
	e := NewEmitter(8)
	e.Emit(Packet{Kind: KindMessageDelta, Text: "a"})

	sinkErr := errors.New("client went away")
	err := e.Drain(func(p Packet) error {
		return sinkErr
	})
	assert.ErrorIs(t, err, sinkErr)
}

func TestPacket_Terminal(t *testing.T) {
	assert.True(t, Packet{Kind: KindOverallStop}.Terminal())
	assert.True(t, Packet{Kind: KindException}.Terminal())
	assert.False(t, Packet{Kind: KindMessageDelta}.Terminal())
}
