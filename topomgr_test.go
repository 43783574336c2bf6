package ransim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconfigureRefusedWhileCollectiveInflight(t *testing.T) {
	evtQ, mgr := createTestNet(t, 2, uniformMatrix(2, 200.0), 10.0, 500)

	mgr.StartCollective()
	done := 0
	hdlr := func(evtQ *EventQueue, context any, data any) any {
		done++
		if done == 2 {
			mgr.FinishCollective()
		}
		return nil
	}
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, hdlr, -1))
	mgr.Send(CreateChunk(1048576, mgr.Route(1, 0), nil, nil, hdlr, -1))

	require.False(t, mgr.Reconfigure(uniformMatrix(2, 20.0), uniformMatrix(2, 10.0), 500, 1))
	require.Equal(t, 1, mgr.TopoIteration())

	evtQ.RunToCompletion()
	require.Equal(t, 2, done)
	require.Equal(t, 0, mgr.InflightCollectives())

	require.True(t, mgr.Reconfigure(uniformMatrix(2, 20.0), uniformMatrix(2, 10.0), 500, 1))
	installTime := evtQ.CurrentTime()

	arrivals := make([]EventTime, 0)
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, arrivalRecorder(&arrivals), -1))
	evtQ.RunToCompletion()

	// link held 500 ns for the swap, then 10 + 1048576/20
	require.Equal(t, []EventTime{installTime + 500 + 52438}, arrivals)
}

func TestReconfigureIdempotentOnSameTopoID(t *testing.T) {
	evtQ, mgr := createTestNet(t, 2, uniformMatrix(2, 100.0), 10.0, 0)
	evtQ.RunToCompletion()

	iterBefore := mgr.TopoIteration()
	require.True(t, mgr.Reconfigure(uniformMatrix(2, 50.0), uniformMatrix(2, 10.0), 0, 0))
	require.Equal(t, iterBefore, mgr.TopoIteration())
	require.True(t, evtQ.Finished())
	require.False(t, mgr.IsReconfiguring())
}

func TestReconfigureRefusedWhileDraining(t *testing.T) {
	evtQ, mgr := createTestNet(t, 2, uniformMatrix(2, 100.0), 10.0, 500)

	// occupy a link so the next reconfiguration has to drain
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, nil, -1))
	for evtQ.CurrentTime() < 500 && !evtQ.Finished() {
		evtQ.Proceed()
	}

	require.True(t, mgr.Reconfigure(uniformMatrix(2, 50.0), uniformMatrix(2, 10.0), 500, 1))
	require.True(t, mgr.IsReconfiguring())
	require.False(t, mgr.Reconfigure(uniformMatrix(2, 25.0), uniformMatrix(2, 10.0), 500, 2))

	evtQ.RunToCompletion()
	require.False(t, mgr.IsReconfiguring())
	require.Equal(t, 2, mgr.GetDevice(0).TopoIteration())
}

func TestStaleChunkGatedUntilInstall(t *testing.T) {
	evtQ := CreateEventQueue()
	mgr := CreateTopologyManager(evtQ, 2, 2, nil)

	// first topology: both links held 500 ns, chunk A queues behind the swap
	require.True(t, mgr.Reconfigure(uniformMatrix(2, 100.0), uniformMatrix(2, 10.0), 500, 0))
	arrivals := make([]EventTime, 0)
	hdlr := arrivalRecorder(&arrivals)
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, hdlr, -1))

	// second topology accepted while A still queued; chunk B is tagged
	// ahead of device 0 and must wait for the install
	require.True(t, mgr.Reconfigure(uniformMatrix(2, 50.0), uniformMatrix(2, 10.0), 500, 1))
	require.True(t, mgr.IsReconfiguring())
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, hdlr, -1))
	require.Equal(t, 2, mgr.GetDevice(0).PendingChunks(1))

	finish := evtQ.RunToCompletion()

	// A emitted at 500 under 100 GB/s, arrives 500 + 10495.  Its link
	// reports drained at 500 + 10485, the swap installs there, links are
	// held 500 ns, and B goes out at 50 GB/s.
	require.Equal(t, []EventTime{10995, 32466}, arrivals)
	require.Equal(t, EventTime(32466), finish)
	require.Equal(t, 2, mgr.GetDevice(0).TopoIteration())
	require.False(t, mgr.IsReconfiguring())
}

func TestUnreachableDestinationPendsForever(t *testing.T) {
	bw := uniformMatrix(3, 0.0)
	bw[0][1] = 100.0
	bw[1][0] = 100.0
	evtQ, mgr := createTestNet(t, 3, bw, 10.0, 0)

	arrivals := make([]EventTime, 0)
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 2), nil, nil, arrivalRecorder(&arrivals), -1))

	evtQ.RunToCompletion()
	require.True(t, evtQ.Finished())
	require.Empty(t, arrivals)
	require.Equal(t, 1, mgr.GetDevice(0).PendingChunks(2))
}

func TestReconfigureToSchedule(t *testing.T) {
	schedules := map[int][][]float64{
		7: uniformMatrix(2, 100.0),
	}
	evtQ := CreateEventQueue()
	mgr := CreateTopologyManager(evtQ, 2, 2, schedules)
	mgr.SetReconfigLatency(0)

	_, err := mgr.ReconfigureTo(3)
	require.Error(t, err)

	accepted, err := mgr.ReconfigureTo(7)
	require.NoError(t, err)
	require.True(t, accepted)

	arrivals := make([]EventTime, 0)
	mgr.Send(CreateChunk(1048576, mgr.Route(0, 1), nil, nil, arrivalRecorder(&arrivals), -1))
	evtQ.RunToCompletion()

	// latency matrix defaults to zero when only a schedule was loaded
	require.Equal(t, []EventTime{10485}, arrivals)
}

func TestCollectiveAccounting(t *testing.T) {
	evtQ := CreateEventQueue()
	mgr := CreateTopologyManager(evtQ, 2, 2, nil)

	require.Equal(t, 0, mgr.InflightCollectives())
	mgr.StartCollective()
	mgr.StartCollective()
	require.Equal(t, 2, mgr.InflightCollectives())
	mgr.FinishCollective()
	mgr.FinishCollective()
	require.Equal(t, 0, mgr.InflightCollectives())
	require.Panics(t, func() { mgr.FinishCollective() })
}

func TestRouteValidatesEndpoints(t *testing.T) {
	evtQ := CreateEventQueue()
	mgr := CreateTopologyManager(evtQ, 2, 3, nil)

	require.Equal(t, []int{0, 1}, mgr.Route(0, 1))
	require.Panics(t, func() { mgr.Route(0, 2) })
	require.Panics(t, func() { mgr.Route(2, 0) })
}

func TestOnRouteChunksCounter(t *testing.T) {
	evtQ, mgr := createTestNet(t, 2, uniformMatrix(2, 100.0), 10.0, 0)

	before := OnRouteChunks()
	mgr.Send(CreateChunk(1000, mgr.Route(0, 1), nil, nil, nil, -1))
	mgr.Send(CreateChunk(1000, mgr.Route(1, 0), nil, nil, nil, -1))
	require.Equal(t, before+2, OnRouteChunks())

	evtQ.RunToCompletion()
}

func TestReconfigTraceRecorded(t *testing.T) {
	evtQ := CreateEventQueue()
	mgr := CreateTopologyManager(evtQ, 2, 2, nil)
	tm := CreateTraceManager("reconfig-test", true)
	mgr.SetTraceManager(tm)

	require.True(t, mgr.Reconfigure(uniformMatrix(2, 100.0), uniformMatrix(2, 10.0), 0, 0))
	records := tm.Traces[reconfigFlowID]
	require.Len(t, records, 1)
	require.Equal(t, "reconfig", records[0].TraceType)
}
