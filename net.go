package ransim

// net.go contains the link and device state machines that carry chunks
// across the simulated network

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// A Link models one directed edge between two devices.  Bandwidth is
// expressed in GB/s and latency in ns.  With the SI-giga convention
// 1 GB/s moves exactly one byte per nanosecond, so the cached B/ns
// figure is numerically the GB/s figure.
type Link struct {
	bandwidth     float64 // GB/s
	bandwidthBpns float64 // B/ns, used in delay arithmetic
	latency       float64 // ns
	busy          bool
	draining      bool
}

// createLink is a constructor
func createLink(bandwidth, latency float64) *Link {
	if bandwidth < 0.0 || latency < 0.0 {
		panic(fmt.Errorf("link created with negative parameter, bandwidth %f, latency %f", bandwidth, latency))
	}
	lk := new(Link)
	lk.bandwidth = bandwidth
	lk.bandwidthBpns = bwGBpsToBpns(bandwidth)
	lk.latency = latency
	lk.busy = false
	return lk
}

// bwGBpsToBpns converts a bandwidth in GB/s to B/ns.  Purely a unit
// change under SI giga: 1 GB/s = 10^9 B / 10^9 ns = 1 B/ns.
func bwGBpsToBpns(bwGBps float64) float64 {
	return bwGBps
}

// Bandwidth reports the link's bandwidth in GB/s
func (lk *Link) Bandwidth() float64 {
	return lk.bandwidth
}

// Latency reports the link's latency in ns
func (lk *Link) Latency() float64 {
	return lk.latency
}

// IsBusy tells the caller whether the link is serializing a chunk
// (or holding for reconfiguration)
func (lk *Link) IsBusy() bool {
	return lk.busy
}

func (lk *Link) setBusy() {
	lk.busy = true
}

func (lk *Link) setFree() {
	lk.busy = false
}

// serializationDelay is the time the link needs to clock the chunk's
// bytes out, after which the link can accept another chunk
func (lk *Link) serializationDelay(size int64) EventTime {
	if size <= 0 {
		panic(fmt.Errorf("serialization delay of nonpositive chunk size %d", size))
	}
	return EventTime(float64(size) / lk.bandwidthBpns)
}

// communicationDelay adds the link latency, giving the time until the
// chunk is wholly present at the far device
func (lk *Link) communicationDelay(size int64) EventTime {
	if size <= 0 {
		panic(fmt.Errorf("communication delay of nonpositive chunk size %d", size))
	}
	return EventTime(lk.latency + float64(size)/lk.bandwidthBpns)
}

// send starts transmitting a chunk.  The link must be free and usable.
// The chunk's arrival at the far device is scheduled here; the returned
// link-free time is left to the owning device to schedule with its own
// callback argument.  Splitting arrival from link-free models both
// store-and-forward latency and pipelined back-to-back transmission.
func (lk *Link) send(evtQ *EventQueue, topo *Topology, chunk *Chunk) EventTime {
	if lk.busy {
		panic("chunk sent on a busy link")
	}
	if !(lk.bandwidth > 0.0) {
		panic("chunk sent on a link with zero bandwidth")
	}
	lk.setBusy()

	now := evtQ.CurrentTime()
	arrival := now + lk.communicationDelay(chunk.Size())
	evtQ.Schedule(topo, chunk, chunkArrivedNextDevice, arrival)

	return now + lk.serializationDelay(chunk.Size())
}

// reconfigure installs new link parameters.  When nothing changes the
// link reports ready immediately with no state change.  Otherwise the
// link is held busy until the reconfiguration latency elapses; the
// caller schedules the link-free event at the returned time.
func (lk *Link) reconfigure(evtQ *EventQueue, bandwidth, latency float64, reconfigTime EventTime) EventTime {
	lk.draining = false

	if bandwidth == lk.bandwidth && latency == lk.latency {
		return evtQ.CurrentTime()
	}

	if lk.busy {
		panic("link reconfigured while busy")
	}
	lk.setBusy()

	debugf("link reconfigured from %.2f GB/s, %.2f ns to %.2f GB/s, %.2f ns at %d ns",
		lk.bandwidth, lk.latency, bandwidth, latency, evtQ.CurrentTime())

	lk.bandwidth = bandwidth
	lk.bandwidthBpns = bwGBpsToBpns(bandwidth)
	lk.latency = latency

	return evtQ.CurrentTime() + reconfigTime
}

// linkFreeArg carries the identity of the link whose serialization
// completed.  Callbacks carry indices rather than pointers; the device
// arena in Topology resolves them.
type linkFreeArg struct {
	devID  int
	peerID int
}

// A Device is a network endpoint or switch.  It owns its outgoing
// links, keeps one FIFO pending queue per link, and holds the routing
// table the topology manager installed for the current iteration.
type Device struct {
	id            int
	topo          *Topology
	links         map[int]*Link
	pending       map[int][]*Chunk
	routes        map[int][]int
	topoIteration int
	draining      bool
}

// createDevice is a constructor
func createDevice(id int, topo *Topology) *Device {
	if id < 0 {
		panic(fmt.Errorf("device created with negative id %d", id))
	}
	dev := new(Device)
	dev.id = id
	dev.topo = topo
	dev.links = make(map[int]*Link)
	dev.pending = make(map[int][]*Chunk)
	dev.routes = make(map[int][]int)
	return dev
}

// DevID reports the device's unique integer id
func (dev *Device) DevID() int {
	return dev.id
}

// TopoIteration reports the topology iteration the device last
// reconfigured to
func (dev *Device) TopoIteration() int {
	return dev.topoIteration
}

// connected tells the caller whether an outgoing link to peer exists
func (dev *Device) connected(peerID int) bool {
	_, present := dev.links[peerID]
	return present
}

// GetLink returns the outgoing link to the named peer
func (dev *Device) GetLink(peerID int) *Link {
	if !dev.connected(peerID) {
		panic(fmt.Errorf("device %d has no link to %d", dev.id, peerID))
	}
	return dev.links[peerID]
}

// PendingChunks reports how many chunks wait for the link to peer
func (dev *Device) PendingChunks(peerID int) int {
	if !dev.connected(peerID) {
		panic(fmt.Errorf("device %d has no link to %d", dev.id, peerID))
	}
	return len(dev.pending[peerID])
}

// connect creates the outgoing link to peer.  Connecting twice is a
// programmer error.
func (dev *Device) connect(peerID int, bandwidth, latency float64) {
	if dev.connected(peerID) {
		panic(fmt.Errorf("device %d already connected to %d", dev.id, peerID))
	}
	dev.links[peerID] = createLink(bandwidth, latency)
	dev.pending[peerID] = make([]*Chunk, 0)
}

// disconnect destroys the outgoing link to peer
func (dev *Device) disconnect(peerID int) {
	if !dev.connected(peerID) {
		panic(fmt.Errorf("device %d not connected to %d", dev.id, peerID))
	}
	delete(dev.links, peerID)
	delete(dev.pending, peerID)
}

// peerIDs returns the ids of all connected peers in ascending order,
// for deterministic iteration
func (dev *Device) peerIDs() []int {
	ids := make([]int, 0, len(dev.links))
	for peerID := range dev.links {
		ids = append(ids, peerID)
	}
	slices.Sort(ids)
	return ids
}

// send accepts a chunk whose current position is this device and either
// forwards it on the next-hop link or queues it.  A chunk bound at or
// behind the device's iteration is freshened against the installed
// routing table; a chunk tagged ahead of the device is left as bound
// and temporally gated in the pending queue until the device catches up.
func (dev *Device) send(evtQ *EventQueue, chunk *Chunk) {
	if chunk.CurrentDevice() != dev.id {
		panic(fmt.Errorf("chunk at device %d submitted to device %d", chunk.CurrentDevice(), dev.id))
	}
	if chunk.ArrivedDest() {
		panic(fmt.Errorf("arrived chunk submitted to device %d", dev.id))
	}

	if chunk.TopoIteration() <= dev.topoIteration {
		route, present := dev.routes[chunk.DestDevice()]
		if !present {
			// no installed route yet; the direct stub stands
			route = []int{dev.id, chunk.DestDevice()}
		}
		chunk.UpdateRoute(route, dev.topoIteration)
	}

	nextID := chunk.NextDevice()
	if !dev.connected(nextID) {
		panic(fmt.Errorf("device %d routed a chunk toward unconnected peer %d", dev.id, nextID))
	}

	lk := dev.links[nextID]
	if lk.IsBusy() || !(lk.Bandwidth() > 0.0) || chunk.TopoIteration() > dev.topoIteration {
		dev.pending[nextID] = append(dev.pending[nextID], chunk)
		debugf("device %d queued a chunk for %d, queue depth %d", dev.id, nextID, len(dev.pending[nextID]))
		return
	}

	freeTime := lk.send(evtQ, dev.topo, chunk)
	evtQ.Schedule(dev.topo, linkFreeArg{devID: dev.id, peerID: nextID}, linkBecomeFree, freeTime)
}

// linkFree handles the completion of serialization on the link to peer.
// The front of the pending queue is emitted if one is present, not
// gated behind a future topology iteration, and the link has positive
// bandwidth; otherwise the drain hook is
// offered to the topology manager, which ignores it outside of a
// network-wide drain.
func (dev *Device) linkFree(evtQ *EventQueue, peerID int) {
	lk := dev.GetLink(peerID)
	lk.setFree()

	queue := dev.pending[peerID]
	if len(queue) == 0 || queue[0].TopoIteration() > dev.topoIteration ||
		!(lk.Bandwidth() > 0.0) {
		dev.topo.drainIncr(evtQ)
		return
	}

	chunk := queue[0]
	dev.pending[peerID] = queue[1:]

	freeTime := lk.send(evtQ, dev.topo, chunk)
	evtQ.Schedule(dev.topo, linkFreeArg{devID: dev.id, peerID: peerID}, linkBecomeFree, freeTime)
}

// linkBecomeFree is the event handler form of linkFree.  The context is
// the Topology arena, the data the (device, peer) index pair.
func linkBecomeFree(evtQ *EventQueue, context any, data any) any {
	topo := context.(*Topology)
	arg := data.(linkFreeArg)
	topo.GetDevice(arg.devID).linkFree(evtQ, arg.peerID)
	return nil
}

// reconfigure installs the device's slice of the new topology: one
// route, bandwidth, and latency per peer.  The device's iteration
// advances first so that chunks gated on it become eligible when the
// per-link ready events fire.  Pending chunks are left in place; the
// scheduled link-free events drain them under the new parameters.
func (dev *Device) reconfigure(evtQ *EventQueue, bandwidths []float64, routes [][]int,
	latencies []float64, reconfigTime EventTime) {

	if len(bandwidths) != dev.topo.DevicesCount() || len(latencies) != dev.topo.DevicesCount() {
		panic(fmt.Errorf("device %d reconfigured with short parameter rows", dev.id))
	}

	dev.topoIteration++
	dev.draining = false

	for _, peerID := range dev.peerIDs() {
		dev.routes[peerID] = routes[peerID]

		debugf("device %d reconfiguring link to %d, pending %d, bandwidth %.2f",
			dev.id, peerID, len(dev.pending[peerID]), bandwidths[peerID])

		readyTime := dev.links[peerID].reconfigure(evtQ, bandwidths[peerID], latencies[peerID], reconfigTime)
		evtQ.Schedule(dev.topo, linkFreeArg{devID: dev.id, peerID: peerID}, linkBecomeFree, readyTime)
	}
}
