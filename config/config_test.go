package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ndim != 3 {
		t.Errorf("Ndim = %d, want 3", cfg.Ndim)
	}
	if cfg.SPH != "gradh" {
		t.Errorf("SPH = %q, want gradh", cfg.SPH)
	}
}

func TestUnknownKeyIsConfigError(t *testing.T) {
	_, err := Load(nil, map[string]string{"not_a_real_key": "1"})
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestOverrideCoercion(t *testing.T) {
	cfg, err := Load(nil, map[string]string{
		"ndim":         "2",
		"self_gravity": "1",
		"tend":         "2.5",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ndim != 2 || !cfg.SelfGravity || cfg.Tend != 2.5 {
		t.Errorf("got %+v", cfg)
	}
}

func TestInvalidEnumRejected(t *testing.T) {
	_, err := Load(nil, map[string]string{"sph": "bogus"})
	if err == nil {
		t.Fatal("expected error for invalid sph token")
	}
}

func TestOneSidedPeriodicRejected(t *testing.T) {
	_, err := Load(nil, map[string]string{
		"x_boundary_lhs": "periodic",
		"x_boundary_rhs": "open",
	})
	if err == nil {
		t.Fatal("expected error for periodic boundary on one face only")
	}
}

func TestOneSidedPeriodicIgnoredBeyondNdim(t *testing.T) {
	_, err := Load(nil, map[string]string{
		"ndim":           "1",
		"z_boundary_lhs": "periodic",
	})
	if err != nil {
		t.Fatalf("non-spatial boundary settings must be ignored, got %v", err)
	}
}

func TestBoundaryDerived(t *testing.T) {
	cfg, err := Load(nil, map[string]string{
		"x_boundary_lhs": "periodic",
		"x_boundary_rhs": "periodic",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Derived.AnyClosed[0] {
		t.Error("expected x dimension to be closed")
	}
	if cfg.Derived.AnyClosed[1] {
		t.Error("y dimension should remain open")
	}
}
