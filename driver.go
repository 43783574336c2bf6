package ransim

// driver.go parses the line-oriented trace format and drives a
// simulation from it.  A trace carries four numeric header lines, then
// BM/BW bandwidth sections, TOPO schedule switches, and FLOW sections.

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SimResult summarizes one completed simulation
type SimResult struct {
	NpusCount       int
	FinishTime      EventTime
	ChunksDelivered int
	ChunksOnRoute   int
	ArrivalTimes    []EventTime
}

// collective tracks one FLOW section as a unit of work the manager must
// see complete before it will reconfigure
type collective struct {
	mgr       *TopologyManager
	remaining int
}

// flowInfo identifies one flow of a collective for trace records
type flowInfo struct {
	coll   *collective
	flowID int
	src    int
	dest   int
	size   int64
}

// driverState carries the mutable pieces of one trace run
type driverState struct {
	evtQ     *EventQueue
	mgr      *TopologyManager
	traceMgr *TraceManager
	result   *SimResult
	nextFlow int
}

// chunkArrived is the completion callback attached to every driver
// chunk.  It records the arrival and retires the collective when its
// last chunk lands.
func chunkArrived(evtQ *EventQueue, context any, data any) any {
	drv := context.(*driverState)
	info := data.(*flowInfo)

	now := evtQ.CurrentTime()
	debugf("chunk %d -> %d arrived at destination at %d ns", info.src, info.dest, now)

	drv.result.ChunksDelivered++
	drv.result.ArrivalTimes = append(drv.result.ArrivalTimes, now)
	if drv.traceMgr != nil {
		AddArrivalTrace(drv.traceMgr, now, info.flowID, info.src, info.dest,
			info.size, drv.mgr.TopoIteration())
	}

	info.coll.remaining--
	if info.coll.remaining == 0 {
		info.coll.mgr.FinishCollective()
	}
	return nil
}

// Simulate runs the trace in the named file to completion.  circuitCfg
// may be nil when the trace uses only inline matrices; traceMgr may be
// nil when no trace records are wanted.
func Simulate(traceFilePath string, circuitCfg *CircuitCfg, traceMgr *TraceManager) (*SimResult, error) {
	file, err := os.Open(traceFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file %s: %w", traceFilePath, err)
	}
	defer file.Close()

	var schedules map[int][][]float64
	if circuitCfg != nil {
		if verr := circuitCfg.Validate(); verr != nil {
			return nil, verr
		}
		schedules = circuitCfg.Schedules()
	}

	var (
		npusCount       int
		itersCount      int
		defaultLatency  int
		reconfigLatency int
		headerRead      int
	)

	drv := &driverState{result: &SimResult{}}

	var latencies [][]float64
	var bwMatrix [][]float64
	var coll *collective
	inBwSection := false
	inFlowSection := false
	nextTopoID := 0
	lineNum := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if headerRead < 4 {
			value, cerr := strconv.Atoi(line)
			if cerr != nil {
				return nil, fmt.Errorf("line %d: header line %q is not an integer", lineNum, line)
			}
			switch headerRead {
			case 0:
				if value <= 0 {
					return nil, fmt.Errorf("line %d: npus count %d not positive", lineNum, value)
				}
				npusCount = value
				drv.evtQ = CreateEventQueue()
				drv.mgr = CreateTopologyManager(drv.evtQ, npusCount, npusCount, schedules)
				drv.traceMgr = traceMgr
				drv.mgr.SetTraceManager(traceMgr)
				if traceMgr != nil {
					for id := 0; id < npusCount; id++ {
						traceMgr.AddName(id, "npu-"+strconv.Itoa(id), "npu")
					}
				}
				drv.result.NpusCount = npusCount
				debugf("npus count %d", npusCount)
			case 1:
				if value <= 0 {
					return nil, fmt.Errorf("line %d: iterations count %d not positive", lineNum, value)
				}
				itersCount = value
				debugf("iterations count %d", itersCount)
			case 2:
				if value < 0 {
					return nil, fmt.Errorf("line %d: default latency %d negative", lineNum, value)
				}
				defaultLatency = value
				latencies = make([][]float64, npusCount)
				for idx := range latencies {
					latencies[idx] = make([]float64, npusCount)
					for jdx := range latencies[idx] {
						latencies[idx][jdx] = float64(defaultLatency)
					}
				}
			case 3:
				if value < 0 {
					return nil, fmt.Errorf("line %d: reconfiguration latency %d negative", lineNum, value)
				}
				reconfigLatency = value
				drv.mgr.SetReconfigLatency(EventTime(reconfigLatency))
			}
			headerRead++
			continue
		}

		switch line {
		case "BM", "BW":
			inBwSection = true
			inFlowSection = false
			bwMatrix = make([][]float64, 0, npusCount)
			continue
		case "FLOW":
			inFlowSection = true
			inBwSection = false
			coll = nil
			continue
		}

		if fields := strings.Fields(line); len(fields) == 2 && fields[0] == "TOPO" {
			topoID, cerr := strconv.Atoi(fields[1])
			if cerr != nil {
				return nil, fmt.Errorf("line %d: topo id %q is not an integer", lineNum, fields[1])
			}
			inBwSection = false
			inFlowSection = false

			quiesce(drv.evtQ, drv.mgr)
			accepted, rerr := drv.mgr.ReconfigureTo(topoID)
			if rerr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, rerr)
			}
			if !accepted {
				return nil, fmt.Errorf("line %d: reconfiguration to topo id %d refused after quiescence", lineNum, topoID)
			}
			nextTopoID = topoID + 1
			continue
		}

		switch {
		case inBwSection:
			row, cerr := parseMatrixRow(line, npusCount)
			if cerr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, cerr)
			}
			bwMatrix = append(bwMatrix, row)
			if len(bwMatrix) == npusCount {
				quiesce(drv.evtQ, drv.mgr)
				if !drv.mgr.Reconfigure(bwMatrix, latencies, EventTime(reconfigLatency), nextTopoID) {
					return nil, fmt.Errorf("line %d: reconfiguration refused after quiescence", lineNum)
				}
				nextTopoID++
				inBwSection = false
			}

		case inFlowSection:
			src, dest, size, cerr := parseFlowLine(line)
			if cerr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, cerr)
			}
			if src < 0 || src >= npusCount || dest < 0 || dest >= npusCount || src == dest {
				return nil, fmt.Errorf("line %d: flow endpoints %d -> %d invalid for %d npus",
					lineNum, src, dest, npusCount)
			}

			if coll == nil {
				coll = &collective{mgr: drv.mgr}
				drv.mgr.StartCollective()
			}
			coll.remaining++

			info := &flowInfo{coll: coll, flowID: drv.nextFlow, src: src, dest: dest, size: size}
			drv.nextFlow++

			debugf("flow %d -> %d, size %d", src, dest, size)
			chunk := CreateChunk(size, drv.mgr.Route(src, dest), drv, info, chunkArrived, -1)
			drv.mgr.Send(chunk)

		default:
			return nil, fmt.Errorf("line %d: unexpected line %q outside any section", lineNum, line)
		}
	}
	if serr := scanner.Err(); serr != nil {
		return nil, serr
	}
	if headerRead < 4 {
		return nil, fmt.Errorf("trace file %s ended inside the numeric header", traceFilePath)
	}

	finishTime := drv.evtQ.RunToCompletion()

	drv.result.FinishTime = finishTime
	drv.result.ChunksOnRoute = OnRouteChunks()

	fmt.Printf("Total NPUs Count: %d\n", drv.result.NpusCount)
	fmt.Printf("Simulation finished at time: %d ns\n", finishTime)

	return drv.result, nil
}

// quiesce drives the event queue until no reconfiguration or collective
// is outstanding, or no events remain to drive
func quiesce(evtQ *EventQueue, mgr *TopologyManager) {
	for (mgr.IsReconfiguring() || mgr.InflightCollectives() > 0) && !evtQ.Finished() {
		evtQ.Proceed()
	}
}

// parseMatrixRow reads one whitespace-separated integer bandwidth row
func parseMatrixRow(line string, n int) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) != n {
		return nil, fmt.Errorf("bandwidth row has %d entries, want %d", len(fields), n)
	}
	row := make([]float64, n)
	for idx, field := range fields {
		value, cerr := strconv.Atoi(field)
		if cerr != nil {
			return nil, fmt.Errorf("bandwidth entry %q is not an integer", field)
		}
		if value < 0 {
			return nil, fmt.Errorf("bandwidth entry %d is negative", value)
		}
		row[idx] = float64(value)
	}
	return row, nil
}

// parseFlowLine reads a `src -> dest size` line
func parseFlowLine(line string) (int, int, int64, error) {
	fields := strings.Fields(strings.ReplaceAll(line, "->", " "))
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("flow line %q is not src -> dest size", line)
	}
	src, serr := strconv.Atoi(fields[0])
	dest, derr := strconv.Atoi(fields[1])
	size, zerr := strconv.ParseInt(fields[2], 10, 64)
	if err := ReportErrs([]error{serr, derr, zerr}); err != nil {
		return 0, 0, 0, fmt.Errorf("flow line %q: %w", line, err)
	}
	return src, dest, size, nil
}
