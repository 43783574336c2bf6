package ransim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircuitCfgYamlRoundTrip(t *testing.T) {
	cfg := CreateCircuitCfg("yaml-round-trip", 2)
	cfg.AddCircuit(0, uniformMatrix(2, 100.0))
	cfg.AddCircuit(3, uniformMatrix(2, 50.0))

	cfgPath := filepath.Join(t.TempDir(), "circuits.yaml")
	require.NoError(t, cfg.WriteToFile(cfgPath))

	readBack, err := ReadCircuitCfg(cfgPath, true, []byte{})
	require.NoError(t, err)
	require.Equal(t, cfg.Name, readBack.Name)
	require.Equal(t, cfg.DevicesCount, readBack.DevicesCount)
	require.Equal(t, cfg.Circuits, readBack.Circuits)
}

func TestCircuitCfgJsonRoundTrip(t *testing.T) {
	cfg := CreateCircuitCfg("json-round-trip", 3)
	cfg.AddCircuit(1, uniformMatrix(3, 200.0))

	cfgPath := filepath.Join(t.TempDir(), "circuits.json")
	require.NoError(t, cfg.WriteToFile(cfgPath))

	readBack, err := ReadCircuitCfg(cfgPath, false, []byte{})
	require.NoError(t, err)
	require.Equal(t, cfg.Circuits, readBack.Circuits)
}

func TestReadCircuitCfgFromBytes(t *testing.T) {
	dict := []byte(`
name: inline
devicescount: 2
circuits:
  - topoid: 4
    bandwidths:
      - [0, 100]
      - [100, 0]
`)
	cfg, err := ReadCircuitCfg("", true, dict)
	require.NoError(t, err)
	require.Equal(t, "inline", cfg.Name)
	require.Equal(t, [][]float64{{0, 100}, {100, 0}}, cfg.Circuits[0].Bandwidths)
}

func TestReadCircuitCfgMissingFile(t *testing.T) {
	_, err := ReadCircuitCfg(filepath.Join(t.TempDir(), "absent.yaml"), true, []byte{})
	require.Error(t, err)
}

func TestCircuitCfgValidateDuplicateTopoID(t *testing.T) {
	cfg := CreateCircuitCfg("dup", 2)
	cfg.AddCircuit(1, uniformMatrix(2, 100.0))
	cfg.AddCircuit(1, uniformMatrix(2, 50.0))

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicated topo id 1")
}

func TestCircuitCfgValidateMatrixShape(t *testing.T) {
	cfg := CreateCircuitCfg("shape", 3)
	cfg.AddCircuit(0, uniformMatrix(2, 100.0))
	require.Error(t, cfg.Validate())

	ragged := uniformMatrix(3, 100.0)
	ragged[1] = ragged[1][:2]
	cfg = CreateCircuitCfg("ragged", 3)
	cfg.AddCircuit(0, ragged)
	require.Error(t, cfg.Validate())

	cfg = CreateCircuitCfg("ok", 3)
	cfg.AddCircuit(0, uniformMatrix(3, 100.0))
	require.NoError(t, cfg.Validate())
}

func TestCircuitCfgSchedules(t *testing.T) {
	cfg := CreateCircuitCfg("schedules", 2)
	cfg.AddCircuit(2, uniformMatrix(2, 100.0))
	cfg.AddCircuit(9, uniformMatrix(2, 25.0))

	schedules := cfg.Schedules()
	require.Len(t, schedules, 2)
	require.Equal(t, uniformMatrix(2, 100.0), schedules[2])
	require.Equal(t, uniformMatrix(2, 25.0), schedules[9])
}

func TestReportErrs(t *testing.T) {
	require.NoError(t, ReportErrs([]error{}))
	require.NoError(t, ReportErrs([]error{nil, nil}))

	err := ReportErrs([]error{nil, errString("first"), errString("second")})
	require.Error(t, err)
	require.Equal(t, "first,second", err.Error())
}

type errString string

func (es errString) Error() string { return string(es) }
