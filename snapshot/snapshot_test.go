package snapshot

import (
	"bytes"
	"testing"

	"github.com/kestrel-sim/sphgrav/particle"
)

func sampleStore() *particle.Store {
	s := particle.New(3, 0)
	for i := range s.Particles {
		s.Particles[i].R = [3]float64{float64(i), float64(i) * 0.5, float64(i) * 0.25}
		s.Particles[i].V = [3]float64{0.1 * float64(i), -0.2, 0.3}
		s.Particles[i].M = 1.0 + float64(i)
		s.Particles[i].H = 0.1
		s.Particles[i].Rho = 1.0
		s.Particles[i].U = 1.5
		s.Particles[i].Alive = true
	}
	s.Particles[1].Alive = false
	return s
}

func TestColumnRoundTrip(t *testing.T) {
	store := sampleStore()
	var buf bytes.Buffer
	if err := WriteColumn(&buf, store, 3, 1.25); err != nil {
		t.Fatalf("WriteColumn: %v", err)
	}
	got, ndim, time, err := ReadColumn(&buf)
	if err != nil {
		t.Fatalf("ReadColumn: %v", err)
	}
	if ndim != 3 || time != 1.25 {
		t.Errorf("header mismatch: ndim=%d time=%v", ndim, time)
	}
	for i := range store.Particles {
		if got.Particles[i].R != store.Particles[i].R {
			t.Errorf("particle %d position mismatch: got %v want %v", i, got.Particles[i].R, store.Particles[i].R)
		}
	}
}

func TestBinaryRoundTripBitExactPositions(t *testing.T) {
	store := sampleStore()
	var buf bytes.Buffer
	if err := WriteBinary(&buf, store, 3, 2.5); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	got, ndim, time, err := ReadBinary(&buf)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if ndim != 3 || time != 2.5 {
		t.Errorf("header mismatch: ndim=%d time=%v", ndim, time)
	}
	for i := range store.Particles {
		if got.Particles[i].R != store.Particles[i].R {
			t.Errorf("particle %d position not bit-exact: got %v want %v", i, got.Particles[i].R, store.Particles[i].R)
		}
		if got.Particles[i].V != store.Particles[i].V {
			t.Errorf("particle %d velocity not bit-exact: got %v want %v", i, got.Particles[i].V, store.Particles[i].V)
		}
		if got.Particles[i].Alive != store.Particles[i].Alive {
			t.Errorf("particle %d alive flag mismatch: got %v want %v", i, got.Particles[i].Alive, store.Particles[i].Alive)
		}
	}
}

func TestBinaryRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXXX\x03\x01" + string(make([]byte, 16)))
	if _, _, _, err := ReadBinary(buf); err == nil {
		t.Error("expected error for bad magic, got nil")
	}
}
