package ransim

// topo.go holds the device inventory.  A Topology owns every device in
// the simulated network and gives event handlers a stable arena through
// which (device, peer) indices resolve to objects.

import (
	"fmt"
)

// drainHook is the notification a device raises when one of its links
// goes idle with nothing left to emit.  Outside of a network-wide drain
// the installed hook ignores the call.
type drainHook func(evtQ *EventQueue)

// A Topology is the inventory of devices making up the network.  The
// first npusCount devices are NPUs, the compute endpoints between which
// traffic flows; the remainder are switches, routable hops that are not
// valid flow endpoints.  Every ordered pair of distinct devices is
// connected, with links created at zero bandwidth until a bandwidth
// matrix is installed.
type Topology struct {
	npusCount    int
	devicesCount int
	devices      []*Device
	onDrainIncr  drainHook
}

// CreateTopology is a constructor.  Device ids run 0..devicesCount-1
// and the full mesh of zero-bandwidth, zero-latency links is built here.
func CreateTopology(npusCount, devicesCount int) *Topology {
	if npusCount <= 0 {
		panic(fmt.Errorf("topology created with nonpositive npu count %d", npusCount))
	}
	if devicesCount < npusCount {
		panic(fmt.Errorf("topology created with device count %d below npu count %d",
			devicesCount, npusCount))
	}

	topo := new(Topology)
	topo.npusCount = npusCount
	topo.devicesCount = devicesCount
	topo.devices = make([]*Device, devicesCount)

	for id := 0; id < devicesCount; id++ {
		topo.devices[id] = createDevice(id, topo)
	}
	for src := 0; src < devicesCount; src++ {
		for dest := 0; dest < devicesCount; dest++ {
			if src == dest {
				continue
			}
			topo.devices[src].connect(dest, 0.0, 0.0)
		}
	}
	return topo
}

// NpusCount reports the number of NPU devices
func (topo *Topology) NpusCount() int {
	return topo.npusCount
}

// DevicesCount reports the total number of devices, NPUs and switches
func (topo *Topology) DevicesCount() int {
	return topo.devicesCount
}

// GetDevice returns the device with the given id
func (topo *Topology) GetDevice(id int) *Device {
	if id < 0 || id >= topo.devicesCount {
		panic(fmt.Errorf("device id %d outside [0,%d)", id, topo.devicesCount))
	}
	return topo.devices[id]
}

// IsNpu tells the caller whether the id names a compute endpoint
func (topo *Topology) IsNpu(id int) bool {
	return 0 <= id && id < topo.npusCount
}

// setDrainHook installs the callback offered to the topology manager
// whenever a link goes idle
func (topo *Topology) setDrainHook(hook drainHook) {
	topo.onDrainIncr = hook
}

// drainIncr forwards an idle-link notification to the installed hook
func (topo *Topology) drainIncr(evtQ *EventQueue) {
	if topo.onDrainIncr != nil {
		topo.onDrainIncr(evtQ)
	}
}

// Send submits a chunk to the device currently holding it
func (topo *Topology) Send(evtQ *EventQueue, chunk *Chunk) {
	topo.GetDevice(chunk.CurrentDevice()).send(evtQ, chunk)
}
