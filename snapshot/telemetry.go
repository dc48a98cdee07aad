package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// TelemetryRecord is one rolling-window row of telemetry.csv, covering
// the diagnostics a run-level observer would want without reading a
// full snapshot.
type TelemetryRecord struct {
	Step           int     `csv:"step"`
	Time           float64 `csv:"time"`
	Nactive        int     `csv:"n_active"`
	Nghost         int     `csv:"n_ghost"`
	KineticEnergy  float64 `csv:"kinetic_energy"`
	ThermalEnergy  float64 `csv:"thermal_energy"`
	GravityEnergy  float64 `csv:"gravity_energy"`
	TotalEnergy    float64 `csv:"total_energy"`
	EnergyErrorRel float64 `csv:"energy_error_rel"`
	MomentumDrift  float64 `csv:"momentum_drift"`
}

// PerfRecord is one rolling-window row of perf.csv, covering wall
// time spent per driver phase.
type PerfRecord struct {
	WindowEnd    int     `csv:"window_end"`
	DtBaseUs     int64   `csv:"dt_base_us"`
	GhostUs      int64   `csv:"ghost_us"`
	TreeUs       int64   `csv:"tree_us"`
	SmoothingUs  int64   `csv:"smoothing_us"`
	HydroUs      int64   `csv:"hydro_us"`
	GravityUs    int64   `csv:"gravity_us"`
	IntegratorUs int64   `csv:"integrator_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
}

// OutputManager streams telemetry.csv and perf.csv to an output
// directory, writing CSV headers on the first record and appending
// headerless rows thereafter.
type OutputManager struct {
	dir                    string
	telemetryFile          *os.File
	perfFile               *os.File
	telemetryHeaderWritten bool
	perfHeaderWritten      bool
}

// NewOutputManager opens (creating if necessary) telemetry.csv and
// perf.csv inside dir. A blank dir disables output entirely; every
// method on a nil *OutputManager is then a no-op.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	om.telemetryFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.telemetryFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

func (om *OutputManager) WriteTelemetry(rec TelemetryRecord) error {
	if om == nil {
		return nil
	}
	records := []TelemetryRecord{rec}
	if !om.telemetryHeaderWritten {
		if err := gocsv.Marshal(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		om.telemetryHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.telemetryFile); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

func (om *OutputManager) WritePerf(rec PerfRecord) error {
	if om == nil {
		return nil
	}
	records := []PerfRecord{rec}
	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	if om.telemetryFile != nil {
		if err := om.telemetryFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
