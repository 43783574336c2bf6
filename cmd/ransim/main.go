package main

// ransim runs a trace file through the reconfigurable network simulator.
//
//	ransim [-v] [-trace out.yaml] [-circuits cfg.yaml] <trace_file_path>

import (
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/iti/ransim"
)

func main() {
	verbose := flag.Bool("v", false, "print progress lines while simulating")
	traceFile := flag.String("trace", "", "write trace records to this yaml or json file")
	circuitsFile := flag.String("circuits", "", "load circuit schedules from this yaml or json file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-v] [-trace out.yaml] [-circuits cfg.yaml] <trace_file_path>\n",
			os.Args[0])
		os.Exit(1)
	}
	tracePath := flag.Arg(0)

	ransim.DebugPrint = *verbose

	var circuitCfg *ransim.CircuitCfg
	if *circuitsFile != "" {
		useYAML := isYamlFile(*circuitsFile)
		cfg, err := ransim.ReadCircuitCfg(*circuitsFile, useYAML, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "circuit configuration: %v\n", err)
			os.Exit(1)
		}
		circuitCfg = cfg
	}

	var traceMgr *ransim.TraceManager
	if *traceFile != "" {
		traceMgr = ransim.CreateTraceManager(path.Base(tracePath), true)
	}

	result, err := ransim.Simulate(tracePath, circuitCfg, traceMgr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation: %v\n", err)
		os.Exit(1)
	}

	if traceMgr != nil {
		traceMgr.WriteToFile(*traceFile)
	}

	fmt.Printf("Chunks placed on route: %d, delivered: %d\n",
		result.ChunksOnRoute, result.ChunksDelivered)
}

func isYamlFile(filename string) bool {
	ext := path.Ext(filename)
	return ext == ".yaml" || ext == ".YAML" || ext == ".yml"
}
