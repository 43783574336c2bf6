package ransim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllGatherFlowSet(t *testing.T) {
	flows := AllGatherFlows(3, 2048)
	require.Len(t, flows, 6)

	seen := make(map[[2]int]bool)
	for _, flow := range flows {
		require.NotEqual(t, flow.Src, flow.Dest)
		require.Equal(t, int64(2048), flow.Size)
		seen[[2]int{flow.Src, flow.Dest}] = true
	}
	require.Len(t, seen, 6)
}

func TestAllGatherFlowsPanics(t *testing.T) {
	require.Panics(t, func() { AllGatherFlows(1, 1024) })
	require.Panics(t, func() { AllGatherFlows(4, 0) })
}

func TestFlowGenBounds(t *testing.T) {
	fg := CreateFlowGen("bounds", 4, 100, 200)

	for idx := 0; idx < 200; idx++ {
		flow := fg.NextFlow()
		require.GreaterOrEqual(t, flow.Src, 0)
		require.Less(t, flow.Src, 4)
		require.GreaterOrEqual(t, flow.Dest, 0)
		require.Less(t, flow.Dest, 4)
		require.NotEqual(t, flow.Src, flow.Dest)
		require.GreaterOrEqual(t, flow.Size, int64(100))
		require.LessOrEqual(t, flow.Size, int64(200))
	}
}

func TestFlowGenFlowSet(t *testing.T) {
	fg := CreateFlowGen("set", 2, 64, 64)
	flows := fg.FlowSet(10)
	require.Len(t, flows, 10)
	for _, flow := range flows {
		require.NotEqual(t, flow.Src, flow.Dest)
		require.Equal(t, int64(64), flow.Size)
	}
}

func TestFlowGenConstructorPanics(t *testing.T) {
	require.Panics(t, func() { CreateFlowGen("bad-npus", 1, 1, 10) })
	require.Panics(t, func() { CreateFlowGen("bad-min", 2, 0, 10) })
	require.Panics(t, func() { CreateFlowGen("bad-range", 2, 10, 5) })
}

func TestSubmitFlowsDelivery(t *testing.T) {
	evtQ, mgr := createTestNet(t, 3, uniformMatrix(3, 100.0), 10.0, 0)

	arrivals := make([]EventTime, 0)
	flows := []Flow{{Src: 0, Dest: 1, Size: 1000}, {Src: 1, Dest: 2, Size: 1000}}
	SubmitFlows(mgr, flows, nil, arrivalRecorder(&arrivals))

	evtQ.RunToCompletion()
	require.Equal(t, []EventTime{20, 20}, arrivals)
}
