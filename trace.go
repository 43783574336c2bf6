package ransim

// trace.go gathers simulation trace records for post-run analysis

import (
	"encoding/json"
	"os"
	"path"
	"strconv"

	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
)

type TraceRecordType int

const (
	ArrivalType TraceRecordType = iota
	ReconfigType
)

var trtToStr map[TraceRecordType]string = map[TraceRecordType]string{
	ArrivalType: "arrival", ReconfigType: "reconfig"}

type TraceInst struct {
	TraceTime string
	TraceType string
	TraceStr  string
}

// NameType is an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// TraceManager gathers information about a simulation model and an
// execution of that model
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, keyed by flow id
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(ExpName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = ExpName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddTrace creates a record of the trace using its calling arguments, and stores it
func (tm *TraceManager) AddTrace(vrt vrtime.Time, flowID int, trace TraceInst) {

	// return if we aren't using the trace manager
	if !tm.InUse {
		return
	}

	_, present := tm.Traces[flowID]
	if !present {
		tm.Traces[flowID] = make([]TraceInst, 0)
	}
	tm.Traces[flowID] = append(tm.Traces[flowID], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()
	return true
}

// nsToVrtime converts the engine's nanosecond clock into the triple
// form carried by trace records
func nsToVrtime(at EventTime) vrtime.Time {
	return vrtime.SecondsToTime(float64(at) * 1e-9)
}

// ArrivalTrace records the delivery of a chunk at its destination
type ArrivalTrace struct {
	Time     float64 // time in float64
	Ticks    int64   // ticks variable of time
	Priority int64   // priority field of time-stamp
	FlowID   int     // flow the chunk belongs to
	SrcID    int     // device the chunk was injected at
	DestID   int     // device the chunk was delivered to
	Size     int64   // chunk size in bytes
	TopoIter int     // topology iteration the chunk completed under
}

func (atr *ArrivalTrace) TraceType() TraceRecordType {
	return ArrivalType
}

func (atr *ArrivalTrace) Serialize() string {
	var bytes []byte
	var merr error

	bytes, merr = yaml.Marshal(*atr)

	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddArrivalTrace creates a record of a chunk arrival and stores it
func AddArrivalTrace(tm *TraceManager, at EventTime, flowID, srcID, destID int,
	size int64, topoIter int) {

	vrt := nsToVrtime(at)
	atr := new(ArrivalTrace)
	atr.Time = vrt.Seconds()
	atr.Ticks = vrt.Ticks()
	atr.Priority = vrt.Pri()
	atr.FlowID = flowID
	atr.SrcID = srcID
	atr.DestID = destID
	atr.Size = size
	atr.TopoIter = topoIter

	atrStr := atr.Serialize()
	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)

	trcInst := TraceInst{TraceTime: traceTime, TraceType: trtToStr[ArrivalType], TraceStr: atrStr}
	tm.AddTrace(vrt, flowID, trcInst)
}

// ReconfigTrace records the installation of a new topology
type ReconfigTrace struct {
	Time     float64 // time in float64
	Ticks    int64   // ticks variable of time
	Priority int64   // priority field of time-stamp
	TopoID   int     // topo id installed, as passed to Reconfigure
	TopoIter int     // topology iteration installed
}

func (rtr *ReconfigTrace) TraceType() TraceRecordType {
	return ReconfigType
}

func (rtr *ReconfigTrace) Serialize() string {
	var bytes []byte
	var merr error

	bytes, merr = yaml.Marshal(*rtr)

	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// reconfigFlowID keys the trace list holding reconfiguration records,
// away from the nonnegative flow ids
const reconfigFlowID int = -1

// AddReconfigTrace creates a record of a completed reconfiguration and stores it
func AddReconfigTrace(tm *TraceManager, at EventTime, topoID, topoIter int) {
	vrt := nsToVrtime(at)
	rtr := new(ReconfigTrace)
	rtr.Time = vrt.Seconds()
	rtr.Ticks = vrt.Ticks()
	rtr.Priority = vrt.Pri()
	rtr.TopoID = topoID
	rtr.TopoIter = topoIter

	rtrStr := rtr.Serialize()
	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)

	trcInst := TraceInst{TraceTime: traceTime, TraceType: trtToStr[ReconfigType], TraceStr: rtrStr}
	tm.AddTrace(vrt, reconfigFlowID, trcInst)
}
