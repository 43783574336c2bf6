package ransim

// topomgr.go holds the TopologyManager, the orchestrator that owns the
// event queue handle, the bandwidth and latency matrices, the precomputed
// route matrix, and the quiescent reconfiguration protocol

import (
	"fmt"
)

// A TopologyManager drives a Topology through its lifetime.  It injects
// chunks, precomputes routes whenever the bandwidth matrix changes, and
// performs reconfigurations only after the network has drained.
type TopologyManager struct {
	evtQ *EventQueue
	topo *Topology

	bandwidths [][]float64
	latencies  [][]float64
	routes     [][][]int

	reconfigTime  EventTime
	reconfiguring bool
	topoIteration int
	curTopoID     int

	inflightCollectives int
	drainedLinks        int

	circuitSchedules map[int][][]float64

	traceMgr *TraceManager
}

// CreateTopologyManager is a constructor.  The full-mesh topology is
// built here, all links at zero bandwidth, and the drain hook installed.
// circuitSchedules may be nil when no schedule file was loaded.
func CreateTopologyManager(evtQ *EventQueue, npusCount, devicesCount int,
	circuitSchedules map[int][][]float64) *TopologyManager {

	if evtQ == nil {
		panic("topology manager created without an event queue")
	}

	mgr := new(TopologyManager)
	mgr.evtQ = evtQ
	mgr.topo = CreateTopology(npusCount, devicesCount)
	mgr.topo.setDrainHook(mgr.drainIncrement)

	mgr.bandwidths = zeroMatrix(devicesCount)
	mgr.latencies = zeroMatrix(devicesCount)
	mgr.routes = stubRoutes(devicesCount)

	mgr.topoIteration = 0
	mgr.curTopoID = -1
	mgr.circuitSchedules = circuitSchedules
	return mgr
}

// zeroMatrix builds a square matrix of zeros
func zeroMatrix(n int) [][]float64 {
	mat := make([][]float64, n)
	for idx := range mat {
		mat[idx] = make([]float64, n)
	}
	return mat
}

// Topology exposes the device inventory the manager drives
func (mgr *TopologyManager) Topology() *Topology {
	return mgr.topo
}

// GetDevice returns the device with the given id
func (mgr *TopologyManager) GetDevice(id int) *Device {
	return mgr.topo.GetDevice(id)
}

// IsReconfiguring tells the caller whether a drain is in progress
func (mgr *TopologyManager) IsReconfiguring() bool {
	return mgr.reconfiguring
}

// TopoIteration reports the manager's topology iteration.  Devices lag
// it between the acceptance of a reconfiguration and its installation.
func (mgr *TopologyManager) TopoIteration() int {
	return mgr.topoIteration
}

// SetReconfigLatency sets the latency charged to every link whose
// parameters change during a reconfiguration
func (mgr *TopologyManager) SetReconfigLatency(latency EventTime) {
	if latency < 0 {
		panic(fmt.Errorf("negative reconfiguration latency %d", latency))
	}
	mgr.reconfigTime = latency
}

// SetTraceManager attaches a trace manager that receives a record for
// every completed reconfiguration
func (mgr *TopologyManager) SetTraceManager(tm *TraceManager) {
	mgr.traceMgr = tm
}

// StartCollective records that the driver issued a group of flows whose
// completion must precede any reconfiguration
func (mgr *TopologyManager) StartCollective() {
	mgr.inflightCollectives++
}

// FinishCollective records the completion of a flow group
func (mgr *TopologyManager) FinishCollective() {
	if mgr.inflightCollectives <= 0 {
		panic("collective finished with none in flight")
	}
	mgr.inflightCollectives--
}

// InflightCollectives reports the number of flow groups still running
func (mgr *TopologyManager) InflightCollectives() int {
	return mgr.inflightCollectives
}

// Route builds the injection route between two NPU endpoints.  The
// injected form is the two-endpoint stub; the source device freshens it
// against the installed routing table at send time.
func (mgr *TopologyManager) Route(src, dest int) []int {
	if !mgr.topo.IsNpu(src) {
		panic(fmt.Errorf("flow source %d is not an npu", src))
	}
	if !mgr.topo.IsNpu(dest) {
		panic(fmt.Errorf("flow destination %d is not an npu", dest))
	}
	return []int{src, dest}
}

// Send places a chunk on the network.  An unbound chunk, tagged -1, is
// bound here to the injection route and the manager's iteration.
func (mgr *TopologyManager) Send(chunk *Chunk) {
	if chunk == nil {
		panic("nil chunk sent")
	}

	src := chunk.CurrentDevice()
	if chunk.TopoIteration() == -1 {
		chunk.UpdateRoute(mgr.Route(src, chunk.DestDevice()), mgr.topoIteration)
	}

	debugf("chunk of %d bytes sent from %d toward %d in iteration %d",
		chunk.Size(), src, chunk.DestDevice(), chunk.TopoIteration())

	onRouteChunks++
	mgr.topo.Send(mgr.evtQ, chunk)
}

// Reconfigure requests a quiescent swap to the given bandwidth and
// latency matrices.  A request naming the installed topo id is an
// accepted no-op.  A request arriving while a reconfiguration is in
// progress, or while collectives are in flight, is refused and the
// caller must retry after draining.  An accepted request recomputes
// routes, advances the iteration, and starts the network drain; the
// swap itself happens when the last link reports drained.
func (mgr *TopologyManager) Reconfigure(bandwidths, latencies [][]float64,
	reconfigTime EventTime, topoID int) bool {

	if topoID == mgr.curTopoID {
		debugf("reconfiguration to installed topo id %d ignored", topoID)
		return true
	}

	if mgr.reconfiguring || mgr.inflightCollectives > 0 {
		debugf("reconfiguration refused, reconfiguring %t, inflight collectives %d",
			mgr.reconfiguring, mgr.inflightCollectives)
		return false
	}

	checkMatrix(bandwidths, mgr.topo.DevicesCount(), "bandwidth")
	checkMatrix(latencies, mgr.topo.DevicesCount(), "latency")

	mgr.bandwidths = bandwidths
	mgr.latencies = latencies
	mgr.reconfigTime = reconfigTime

	mgr.routes = precomputeRoutes(mgr.bandwidths)

	mgr.reconfiguring = true
	mgr.curTopoID = topoID
	mgr.topoIteration++

	debugf("reconfiguration to topo id %d accepted at %d ns, iteration %d",
		topoID, mgr.evtQ.CurrentTime(), mgr.topoIteration)

	mgr.drainNetwork()
	return true
}

// ReconfigureTo looks a bandwidth matrix up in the loaded circuit
// schedules and reconfigures to it, reusing the installed latency matrix
// and reconfiguration latency
func (mgr *TopologyManager) ReconfigureTo(topoID int) (bool, error) {
	matrix, present := mgr.circuitSchedules[topoID]
	if !present {
		return false, fmt.Errorf("topo id %d not found in circuit schedules", topoID)
	}
	return mgr.Reconfigure(matrix, mgr.latencies, mgr.reconfigTime, topoID), nil
}

// checkMatrix panics unless the matrix is square of the expected order
func checkMatrix(mat [][]float64, n int, label string) {
	if len(mat) != n {
		panic(fmt.Errorf("%s matrix has %d rows, want %d", label, len(mat), n))
	}
	for idx, row := range mat {
		if len(row) != n {
			panic(fmt.Errorf("%s matrix row %d has %d entries, want %d", label, idx, len(row), n))
		}
	}
}

// drainNetwork marks every link draining and counts the ones already
// idle.  An idle link owes no future link-free event, so it is counted
// here; a busy one is counted by the drain hook when its natural
// link-free event finds nothing left to emit.
func (mgr *TopologyManager) drainNetwork() {
	mgr.drainedLinks = 0

	n := mgr.topo.DevicesCount()
	for devID := 0; devID < n; devID++ {
		dev := mgr.topo.GetDevice(devID)
		dev.draining = true
		for peerID := 0; peerID < n; peerID++ {
			if peerID == devID {
				continue
			}
			lk := dev.GetLink(peerID)
			lk.draining = true
			if !lk.IsBusy() {
				mgr.drainIncrement(mgr.evtQ)
			}
		}
	}
}

// drainIncrement is the drain hook the topology offers on every idle
// link.  Outside a reconfiguration it only clears the counter.  During
// one it counts the link, and when every directed link has reported,
// performs the swap.
func (mgr *TopologyManager) drainIncrement(evtQ *EventQueue) {
	if !mgr.reconfiguring {
		mgr.drainedLinks = 0
		return
	}

	mgr.drainedLinks++
	linksCount := mgr.topo.DevicesCount() * (mgr.topo.DevicesCount() - 1)
	debugf("link drained, %d/%d at %d ns", mgr.drainedLinks, linksCount, evtQ.CurrentTime())

	if mgr.drainedLinks < linksCount {
		return
	}

	mgr.drainedLinks = 0
	mgr.reconfiguring = false

	debugf("network drained, installing iteration %d at %d ns", mgr.topoIteration, evtQ.CurrentTime())

	for devID := 0; devID < mgr.topo.DevicesCount(); devID++ {
		mgr.topo.GetDevice(devID).reconfigure(evtQ,
			mgr.bandwidths[devID], mgr.routes[devID], mgr.latencies[devID], mgr.reconfigTime)
	}

	if mgr.traceMgr != nil {
		AddReconfigTrace(mgr.traceMgr, evtQ.CurrentTime(), mgr.curTopoID, mgr.topoIteration)
	}
}
