// Package config loads and validates the flat key/value simulation
// configuration: a YAML defaults file merged with an optional user
// YAML file and then with a flat map of CLI-style string overrides.
// Unknown keys are a ConfigError.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-sim/sphgrav/simerr"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every recognized simulation parameter.
type Config struct {
	Sim string `yaml:"sim"`
	IC  string `yaml:"ic"`

	Ndim   int `yaml:"ndim"`
	Nhydro int `yaml:"Nhydro"`
	Nstar  int `yaml:"Nstar"`

	Tend        float64 `yaml:"tend"`
	TsnapFirst  float64 `yaml:"tsnapfirst"`
	DtSnap      float64 `yaml:"dt_snap"`
	Noutputstep int     `yaml:"noutputstep"`

	HydroForces bool `yaml:"hydro_forces"`
	SelfGravity bool `yaml:"self_gravity"`

	GasEOS   string  `yaml:"gas_eos"`
	GammaEOS float64 `yaml:"gamma_eos"`

	SPH             string  `yaml:"sph"`
	HConverge       float64 `yaml:"h_converge"`
	KernelName      string  `yaml:"kernel"`
	TabulatedKernel bool    `yaml:"tabulated_kernel"`
	Kernrange       float64 `yaml:"kernrange"`

	Avisc     string  `yaml:"avisc"`
	Acond     string  `yaml:"acond"`
	AlphaVisc float64 `yaml:"alpha_visc"`
	BetaVisc  float64 `yaml:"beta_visc"`

	SPHIntegration    string  `yaml:"sph_integration"`
	CourantMult       float64 `yaml:"courant_mult"`
	AccelMult         float64 `yaml:"accel_mult"`
	EnergyMult        float64 `yaml:"energy_mult"`
	SPHSingleTimestep bool    `yaml:"sph_single_timestep"`
	Nlevels           int     `yaml:"Nlevels"`

	NeibSearch string `yaml:"neib_search"`
	Nleafmax   int    `yaml:"Nleafmax"`
	Nghostmax  int    `yaml:"Nghostmax"`

	ThetaMaxSqd float64 `yaml:"thetamaxsqd"`
	GravityMAC  string  `yaml:"gravity_mac"`
	Multipole   string  `yaml:"multipole"`

	XBoundaryLHS    string `yaml:"x_boundary_lhs"`
	XBoundaryRHS    string `yaml:"x_boundary_rhs"`
	YBoundaryLHS    string `yaml:"y_boundary_lhs"`
	YBoundaryRHS    string `yaml:"y_boundary_rhs"`
	ZBoundaryLHS    string `yaml:"z_boundary_lhs"`
	ZBoundaryRHS    string `yaml:"z_boundary_rhs"`
	PeriodicGravity bool   `yaml:"periodic_gravity"`

	GhostRange float64 `yaml:"ghost_range"`

	// Derived is computed by Validate after load/merge and is not
	// read from YAML.
	Derived Derived `yaml:"-"`
}

// Derived holds values computed once from Config that hot loops read
// repeatedly.
type Derived struct {
	ThetaMaxSqdCached float64
	BoundaryLHS       [3]BoundaryKind
	BoundaryRHS       [3]BoundaryKind
	AnyClosed         [3]bool
}

// BoundaryKind is a per-face boundary condition.
type BoundaryKind int

const (
	Open BoundaryKind = iota
	Periodic
	Mirror
)

func parseBoundary(s string) (BoundaryKind, error) {
	switch s {
	case "open":
		return Open, nil
	case "periodic":
		return Periodic, nil
	case "mirror":
		return Mirror, nil
	default:
		return Open, fmt.Errorf("unknown boundary kind %q", s)
	}
}

var (
	validGasEOS    = set("energy_eqn", "isothermal", "barotropic")
	validSPH       = set("gradh", "sm2012", "mfv_mm", "mfv_rk")
	validKernel    = set("m4", "quintic", "gaussian")
	validAvisc     = set("none", "mon97")
	validAcond     = set("none", "wadsley")
	validIntegr    = set("lfkdk", "lfdkd", "rk")
	validNeibSrch  = set("kdtree", "octtree", "brute")
	validGravMAC   = set("geometric", "eigenmac")
	validMultipole = set("monopole", "quadrupole", "fast_monopole", "fast_quadrupole")
	validBoundary  = set("open", "periodic", "mirror")
)

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// Load reads the embedded defaults, merges an optional user YAML file
// (userYAML may be nil), applies flat string overrides, and validates
// the result.
func Load(userYAML []byte, overrides map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, simerr.Wrap(simerr.KindConfig, 0, -1, "parsing embedded defaults", err)
	}
	if len(userYAML) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(userYAML))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, simerr.Wrap(simerr.KindConfig, 0, -1, "parsing user config", err)
		}
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides applies a flat key->value map of string overrides on
// top of the already-loaded config, coercing to each field's type.
// An unrecognized key is a ConfigError.
func (c *Config) ApplyOverrides(overrides map[string]string) error {
	for k, v := range overrides {
		if err := c.setOne(k, v); err != nil {
			return simerr.Wrap(simerr.KindConfig, 0, -1, fmt.Sprintf("key %q", k), err)
		}
	}
	return nil
}

func (c *Config) setOne(key, v string) error {
	switch key {
	case "sim":
		c.Sim = v
	case "ic":
		c.IC = v
	case "ndim":
		return setInt(&c.Ndim, v)
	case "Nhydro":
		return setInt(&c.Nhydro, v)
	case "Nstar":
		return setInt(&c.Nstar, v)
	case "tend":
		return setFloat(&c.Tend, v)
	case "tsnapfirst":
		return setFloat(&c.TsnapFirst, v)
	case "dt_snap":
		return setFloat(&c.DtSnap, v)
	case "noutputstep":
		return setInt(&c.Noutputstep, v)
	case "hydro_forces":
		return setBool(&c.HydroForces, v)
	case "self_gravity":
		return setBool(&c.SelfGravity, v)
	case "gas_eos":
		c.GasEOS = v
	case "gamma_eos":
		return setFloat(&c.GammaEOS, v)
	case "sph":
		c.SPH = v
	case "h_converge":
		return setFloat(&c.HConverge, v)
	case "kernel":
		c.KernelName = v
	case "tabulated_kernel":
		return setBool(&c.TabulatedKernel, v)
	case "avisc":
		c.Avisc = v
	case "acond":
		c.Acond = v
	case "alpha_visc":
		return setFloat(&c.AlphaVisc, v)
	case "beta_visc":
		return setFloat(&c.BetaVisc, v)
	case "sph_integration":
		c.SPHIntegration = v
	case "courant_mult":
		return setFloat(&c.CourantMult, v)
	case "accel_mult":
		return setFloat(&c.AccelMult, v)
	case "energy_mult":
		return setFloat(&c.EnergyMult, v)
	case "sph_single_timestep":
		return setBool(&c.SPHSingleTimestep, v)
	case "Nlevels":
		return setInt(&c.Nlevels, v)
	case "neib_search":
		c.NeibSearch = v
	case "Nleafmax":
		return setInt(&c.Nleafmax, v)
	case "Nghostmax":
		return setInt(&c.Nghostmax, v)
	case "thetamaxsqd":
		return setFloat(&c.ThetaMaxSqd, v)
	case "gravity_mac":
		c.GravityMAC = v
	case "multipole":
		c.Multipole = v
	case "x_boundary_lhs":
		c.XBoundaryLHS = v
	case "x_boundary_rhs":
		c.XBoundaryRHS = v
	case "y_boundary_lhs":
		c.YBoundaryLHS = v
	case "y_boundary_rhs":
		c.YBoundaryRHS = v
	case "z_boundary_lhs":
		c.ZBoundaryLHS = v
	case "z_boundary_rhs":
		c.ZBoundaryRHS = v
	case "periodic_gravity":
		return setBool(&c.PeriodicGravity, v)
	case "ghost_range":
		return setFloat(&c.GhostRange, v)
	default:
		return fmt.Errorf("unknown config key")
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setBool(dst *bool, v string) error {
	switch v {
	case "0", "false":
		*dst = false
	case "1", "true":
		*dst = true
	default:
		return fmt.Errorf("expected 0/1/true/false, got %q", v)
	}
	return nil
}

// Validate checks enum tokens and boundary/ndim consistency, and
// computes Derived.
func (c *Config) Validate() error {
	if c.Ndim < 1 || c.Ndim > 3 {
		return simerr.New(simerr.KindConfig, 0, -1, fmt.Sprintf("ndim must be 1..3, got %d", c.Ndim))
	}
	checks := []struct {
		name string
		val  string
		set  map[string]bool
	}{
		{"gas_eos", c.GasEOS, validGasEOS},
		{"sph", c.SPH, validSPH},
		{"kernel", c.KernelName, validKernel},
		{"avisc", c.Avisc, validAvisc},
		{"acond", c.Acond, validAcond},
		{"sph_integration", c.SPHIntegration, validIntegr},
		{"neib_search", c.NeibSearch, validNeibSrch},
		{"gravity_mac", c.GravityMAC, validGravMAC},
		{"multipole", c.Multipole, validMultipole},
		{"x_boundary_lhs", c.XBoundaryLHS, validBoundary},
		{"x_boundary_rhs", c.XBoundaryRHS, validBoundary},
		{"y_boundary_lhs", c.YBoundaryLHS, validBoundary},
		{"y_boundary_rhs", c.YBoundaryRHS, validBoundary},
		{"z_boundary_lhs", c.ZBoundaryLHS, validBoundary},
		{"z_boundary_rhs", c.ZBoundaryRHS, validBoundary},
	}
	for _, ck := range checks {
		if !ck.set[ck.val] {
			return simerr.New(simerr.KindConfig, 0, -1, fmt.Sprintf("%s: unrecognized token %q", ck.name, ck.val))
		}
	}

	lhs := [3]string{c.XBoundaryLHS, c.YBoundaryLHS, c.ZBoundaryLHS}
	rhs := [3]string{c.XBoundaryRHS, c.YBoundaryRHS, c.ZBoundaryRHS}
	var d Derived
	d.ThetaMaxSqdCached = c.ThetaMaxSqd
	for dim := 0; dim < 3; dim++ {
		// Non-spatial dimensions' boundary settings are ignored: still
		// parsed (no harm), never consulted beyond ndim.
		bl, err := parseBoundary(lhs[dim])
		if err != nil {
			return simerr.Wrap(simerr.KindConfig, 0, -1, "boundary", err)
		}
		br, err := parseBoundary(rhs[dim])
		if err != nil {
			return simerr.Wrap(simerr.KindConfig, 0, -1, "boundary", err)
		}
		d.BoundaryLHS[dim] = bl
		d.BoundaryRHS[dim] = br
		if dim < c.Ndim {
			// A periodic face requires its opposite face to be periodic
			// too; wrapping through one side of an open box has no
			// consistent image.
			if (bl == Periodic) != (br == Periodic) {
				axis := [3]string{"x", "y", "z"}[dim]
				return simerr.New(simerr.KindConfig, 0, -1,
					fmt.Sprintf("%s boundary: periodic must be set on both faces", axis))
			}
			d.AnyClosed[dim] = bl != Open || br != Open
		}
	}
	c.Derived = d
	return nil
}
