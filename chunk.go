package ransim

// chunk.go holds the representation of a chunk, the unit of data
// whose transit through the network the simulator models

import (
	"fmt"
)

// count of chunks placed on the network since the simulation started
var onRouteChunks int = 0

// OnRouteChunks reports the number of chunks the manager has placed
// on the network since the simulation started
func OnRouteChunks() int {
	return onRouteChunks
}

// A Chunk is a size-bearing unit of data in transit.  It carries the
// route it must traverse, expressed as device ids with route[0] the
// device currently holding it, a completion callback invoked exactly
// once when the route shrinks to length one, and the topology iteration
// it was bound under.  An iteration tag of -1 means the chunk has not
// yet been bound to a topology and will be at send time.
type Chunk struct {
	size          int64
	route         []int
	topoIteration int
	cmpltHdlr     EventHandlerFunction
	cmpltCxt      any
	cmpltData     any
	invoked       bool
}

// CreateChunk is a constructor.  The route must be nonempty and the
// size positive.
func CreateChunk(size int64, route []int, cmpltCxt any, cmpltData any,
	cmpltHdlr EventHandlerFunction, topoIteration int) *Chunk {

	if size <= 0 {
		panic(fmt.Errorf("chunk created with nonpositive size %d", size))
	}
	if len(route) == 0 {
		panic("chunk created with empty route")
	}
	chunk := new(Chunk)
	chunk.size = size
	chunk.route = route
	chunk.topoIteration = topoIteration
	chunk.cmpltHdlr = cmpltHdlr
	chunk.cmpltCxt = cmpltCxt
	chunk.cmpltData = cmpltData
	return chunk
}

// Size reports the chunk size in bytes
func (chunk *Chunk) Size() int64 {
	return chunk.size
}

// CurrentDevice reports the id of the device now holding the chunk
func (chunk *Chunk) CurrentDevice() int {
	return chunk.route[0]
}

// NextDevice reports the id of the chunk's next hop.  Asking for the
// next hop of a chunk that has arrived is a programmer error.
func (chunk *Chunk) NextDevice() int {
	if chunk.ArrivedDest() {
		panic("next hop requested for a chunk already at its destination")
	}
	return chunk.route[1]
}

// DestDevice reports the id of the chunk's final destination
func (chunk *Chunk) DestDevice() int {
	return chunk.route[len(chunk.route)-1]
}

// MarkArrivedNextDevice pops the front of the route, recording that the
// chunk completed a hop.  A route of length one means arrival.
func (chunk *Chunk) MarkArrivedNextDevice() {
	if len(chunk.route) < 2 {
		panic("hop marked for a chunk already at its destination")
	}
	chunk.route = chunk.route[1:]
}

// ArrivedDest tells the caller whether the chunk reached its destination
func (chunk *Chunk) ArrivedDest() bool {
	return len(chunk.route) == 1
}

// TopoIteration reports the topology iteration the chunk is bound under
func (chunk *Chunk) TopoIteration() int {
	return chunk.topoIteration
}

// UpdateRoute replaces the chunk's route and iteration tag.  Called when
// a device freshens the chunk against the currently installed topology.
func (chunk *Chunk) UpdateRoute(route []int, topoIteration int) {
	if len(route) == 0 {
		panic("chunk route updated to an empty route")
	}
	chunk.route = route
	chunk.topoIteration = topoIteration
}

// InvokeCallback fires the completion callback.  Firing twice, or firing
// before arrival, is a programmer error.
func (chunk *Chunk) InvokeCallback(evtQ *EventQueue) {
	if !chunk.ArrivedDest() {
		panic("completion callback invoked before the chunk arrived")
	}
	if chunk.invoked {
		panic("completion callback invoked twice")
	}
	chunk.invoked = true
	if chunk.cmpltHdlr != nil {
		chunk.cmpltHdlr(evtQ, chunk.cmpltCxt, chunk.cmpltData)
	}
}

// chunkArrivedNextDevice is the event handler fired when a chunk's
// transmission across a link completes.  The context is the Topology and
// the data the chunk itself.  An arrived chunk fires its completion
// callback and leaves the simulation; otherwise the now-current device
// takes over.
func chunkArrivedNextDevice(evtQ *EventQueue, context any, data any) any {
	topo := context.(*Topology)
	chunk := data.(*Chunk)

	chunk.MarkArrivedNextDevice()
	if chunk.ArrivedDest() {
		chunk.InvokeCallback(evtQ)
		return nil
	}

	topo.GetDevice(chunk.CurrentDevice()).send(evtQ, chunk)
	return nil
}
