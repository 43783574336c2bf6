package ransim

// flow-sim.go generates synthetic workloads, collective flow sets the
// driver and benchmarks can push through a topology without a trace file

import (
	"fmt"

	"github.com/iti/rngstream"
)

// A Flow names one point-to-point transfer of a collective
type Flow struct {
	Src  int
	Dest int
	Size int64
}

// AllGatherFlows expands an all-gather over the first npus devices into
// its full flow set, one transfer for every ordered pair of distinct
// endpoints
func AllGatherFlows(npus int, size int64) []Flow {
	if npus < 2 {
		panic(fmt.Errorf("all-gather over %d npus", npus))
	}
	if size <= 0 {
		panic(fmt.Errorf("all-gather with nonpositive flow size %d", size))
	}

	flows := make([]Flow, 0, npus*(npus-1))
	for src := 0; src < npus; src++ {
		for dest := 0; dest < npus; dest++ {
			if src == dest {
				continue
			}
			flows = append(flows, Flow{Src: src, Dest: dest, Size: size})
		}
	}
	return flows
}

// A FlowGen draws random flows from its own named rng stream
type FlowGen struct {
	rngstrm *rngstream.RngStream
	npus    int
	minSize int64
	maxSize int64
}

// CreateFlowGen is a constructor.  Sizes are drawn uniformly from
// [minSize, maxSize].
func CreateFlowGen(name string, npus int, minSize, maxSize int64) *FlowGen {
	if npus < 2 {
		panic(fmt.Errorf("flow generator over %d npus", npus))
	}
	if minSize <= 0 || maxSize < minSize {
		panic(fmt.Errorf("flow generator with size range [%d,%d]", minSize, maxSize))
	}

	fg := new(FlowGen)
	fg.rngstrm = rngstream.New(name)
	fg.npus = npus
	fg.minSize = minSize
	fg.maxSize = maxSize
	return fg
}

// randRange maps a U(0,1) draw onto {0,...,n-1}
func (fg *FlowGen) randRange(n int) int {
	idx := int(fg.rngstrm.RandU01() * float64(n))
	if idx == n {
		idx = n - 1
	}
	return idx
}

// NextFlow draws one flow with distinct endpoints
func (fg *FlowGen) NextFlow() Flow {
	src := fg.randRange(fg.npus)
	dest := fg.randRange(fg.npus - 1)
	if dest >= src {
		dest++
	}
	size := fg.minSize + int64(fg.randRange(int(fg.maxSize-fg.minSize)+1))
	return Flow{Src: src, Dest: dest, Size: size}
}

// FlowSet draws a workload of the given cardinality
func (fg *FlowGen) FlowSet(count int) []Flow {
	flows := make([]Flow, count)
	for idx := range flows {
		flows[idx] = fg.NextFlow()
	}
	return flows
}

// SubmitFlows places one chunk per flow on the network, all sharing the
// given completion handler and context
func SubmitFlows(mgr *TopologyManager, flows []Flow, cmpltCxt any,
	cmpltHdlr EventHandlerFunction) {

	for idx := range flows {
		flow := flows[idx]
		chunk := CreateChunk(flow.Size, mgr.Route(flow.Src, flow.Dest),
			cmpltCxt, &flows[idx], cmpltHdlr, -1)
		mgr.Send(chunk)
	}
}
