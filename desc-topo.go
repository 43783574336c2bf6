package ransim

// desc-topo.go holds the serializable description of circuit schedules,
// the named bandwidth matrices the manager may be asked to switch to

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// CircuitDesc names one circuit schedule: a topo id and the bandwidth
// matrix (GB/s) installed when the manager reconfigures to that id
type CircuitDesc struct {
	TopoID     int         `json:"topoid" yaml:"topoid"`
	Bandwidths [][]float64 `json:"bandwidths" yaml:"bandwidths"`
}

// CircuitCfg is the serializable set of circuit schedules for one
// network.  DevicesCount fixes the order every matrix must have.
type CircuitCfg struct {
	Name         string        `json:"name" yaml:"name"`
	DevicesCount int           `json:"devicescount" yaml:"devicescount"`
	Circuits     []CircuitDesc `json:"circuits" yaml:"circuits"`
}

// CreateCircuitCfg is a constructor
func CreateCircuitCfg(name string, devicesCount int) *CircuitCfg {
	ccf := new(CircuitCfg)
	ccf.Name = name
	ccf.DevicesCount = devicesCount
	ccf.Circuits = make([]CircuitDesc, 0)
	return ccf
}

// AddCircuit appends one schedule to the configuration
func (ccf *CircuitCfg) AddCircuit(topoID int, bandwidths [][]float64) {
	ccf.Circuits = append(ccf.Circuits, CircuitDesc{TopoID: topoID, Bandwidths: bandwidths})
}

// Validate checks matrix shapes and topo id uniqueness
func (ccf *CircuitCfg) Validate() error {
	errList := make([]error, 0)
	seen := make(map[int]bool)

	for _, circuit := range ccf.Circuits {
		if seen[circuit.TopoID] {
			errList = append(errList, fmt.Errorf("duplicated topo id %d", circuit.TopoID))
		}
		seen[circuit.TopoID] = true

		if len(circuit.Bandwidths) != ccf.DevicesCount {
			errList = append(errList,
				fmt.Errorf("topo id %d matrix has %d rows, want %d",
					circuit.TopoID, len(circuit.Bandwidths), ccf.DevicesCount))
			continue
		}
		for rowIdx, row := range circuit.Bandwidths {
			if len(row) != ccf.DevicesCount {
				errList = append(errList,
					fmt.Errorf("topo id %d matrix row %d has %d entries, want %d",
						circuit.TopoID, rowIdx, len(row), ccf.DevicesCount))
			}
		}
	}
	return ReportErrs(errList)
}

// Schedules converts the configuration into the lookup map the topology
// manager consumes
func (ccf *CircuitCfg) Schedules() map[int][][]float64 {
	schedules := make(map[int][][]float64)
	for _, circuit := range ccf.Circuits {
		schedules[circuit.TopoID] = circuit.Bandwidths
	}
	return schedules
}

// WriteToFile stores the CircuitCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (ccf *CircuitCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*ccf)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*ccf, "", "\t")
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

	return werr
}

// ReadCircuitCfg deserializes a byte slice holding a representation of a
// CircuitCfg struct.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  A deserialized
// representation is returned, or an error if one is generated
func ReadCircuitCfg(filename string, useYAML bool, dict []byte) (*CircuitCfg, error) {
	var err error

	// read from the file only if the byte slice is empty
	if len(dict) == 0 {
		fileInfo, err := os.Stat(filename)
		if os.IsNotExist(err) || fileInfo.IsDir() {
			msg := fmt.Sprintf("circuit configuration %s does not exist or cannot be read", filename)
			fmt.Println(msg)

			return nil, errors.New(msg)
		}
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := CircuitCfg{}

	// the useYAML argument selects whether we are deserializing yaml or json
	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}
	if err != nil {
		return nil, err
	}

	if verr := example.Validate(); verr != nil {
		return nil, verr
	}

	return &example, nil
}

// ReportErrs combines the non-nil errors of a list into a single error
func ReportErrs(errs []error) error {
	err_msg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			err_msg = append(err_msg, err.Error())
		}
	}
	if len(err_msg) == 0 {
		return nil
	}

	return errors.New(strings.Join(err_msg, ","))
}
