package ransim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkRouteProgress(t *testing.T) {
	chunk := CreateChunk(1024, []int{0, 1, 2}, nil, nil, nil, 0)

	require.Equal(t, int64(1024), chunk.Size())
	require.Equal(t, 0, chunk.CurrentDevice())
	require.Equal(t, 1, chunk.NextDevice())
	require.Equal(t, 2, chunk.DestDevice())
	require.False(t, chunk.ArrivedDest())

	chunk.MarkArrivedNextDevice()
	require.Equal(t, 1, chunk.CurrentDevice())
	require.Equal(t, 2, chunk.NextDevice())
	require.False(t, chunk.ArrivedDest())

	chunk.MarkArrivedNextDevice()
	require.True(t, chunk.ArrivedDest())
	require.Equal(t, 2, chunk.CurrentDevice())
	require.Equal(t, 2, chunk.DestDevice())

	require.Panics(t, func() { chunk.NextDevice() })
	require.Panics(t, func() { chunk.MarkArrivedNextDevice() })
}

func TestChunkConstructorPanics(t *testing.T) {
	require.Panics(t, func() { CreateChunk(0, []int{0, 1}, nil, nil, nil, 0) })
	require.Panics(t, func() { CreateChunk(-5, []int{0, 1}, nil, nil, nil, 0) })
	require.Panics(t, func() { CreateChunk(1024, []int{}, nil, nil, nil, 0) })
}

func TestChunkCallbackFiresExactlyOnce(t *testing.T) {
	evtQ := CreateEventQueue()
	calls := 0
	hdlr := func(evtQ *EventQueue, context any, data any) any {
		calls++
		return nil
	}

	chunk := CreateChunk(1024, []int{0, 1}, nil, nil, hdlr, 0)

	require.Panics(t, func() { chunk.InvokeCallback(evtQ) })

	chunk.MarkArrivedNextDevice()
	chunk.InvokeCallback(evtQ)
	require.Equal(t, 1, calls)

	require.Panics(t, func() { chunk.InvokeCallback(evtQ) })
	require.Equal(t, 1, calls)
}

func TestChunkUpdateRoute(t *testing.T) {
	chunk := CreateChunk(1024, []int{0, 2}, nil, nil, nil, -1)
	require.Equal(t, -1, chunk.TopoIteration())

	chunk.UpdateRoute([]int{0, 1, 2}, 3)
	require.Equal(t, 3, chunk.TopoIteration())
	require.Equal(t, 1, chunk.NextDevice())
	require.Equal(t, 2, chunk.DestDevice())

	require.Panics(t, func() { chunk.UpdateRoute([]int{}, 4) })
}
