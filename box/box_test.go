package box

import "testing"

func newTestBox(lhs, rhs Kind) *DomainBox {
	return New(2, [3]float64{0, 0, 0}, [3]float64{1, 1, 0}, [3]Kind{lhs, lhs, Open}, [3]Kind{rhs, rhs, Open}, false)
}

func TestWrapOrReflectPeriodic(t *testing.T) {
	b := newTestBox(Periodic, Periodic)
	r := [3]float64{1.2, -0.3, 0}
	v := [3]float64{1, 1, 0}
	b.WrapOrReflect(&r, &v)
	if !b.Contained(r) {
		t.Fatalf("r=%v not contained", r)
	}
	if v != [3]float64{1, 1, 0} {
		t.Errorf("periodic wrap must not change velocity, got %v", v)
	}
}

func TestWrapOrReflectMirror(t *testing.T) {
	b := newTestBox(Mirror, Mirror)
	r := [3]float64{-0.1, 1.1, 0}
	v := [3]float64{-2, 3, 0}
	b.WrapOrReflect(&r, &v)
	if !b.Contained(r) {
		t.Fatalf("r=%v not contained", r)
	}
	if v[0] != 2 || v[1] != -3 {
		t.Errorf("mirror must flip velocity on the reflected axis, got %v", v)
	}
}

func TestContainedIgnoresOpenFaces(t *testing.T) {
	b := newTestBox(Open, Open)
	r := [3]float64{5, -5, 0}
	if !b.Contained(r) {
		t.Error("open boundary must never reject containment")
	}
}

func TestNearestImageWraps(t *testing.T) {
	b := newTestBox(Periodic, Periodic)
	d := b.NearestImage([3]float64{0.05, 0, 0}, [3]float64{0.95, 0, 0})
	if d[0] > 0.15 || d[0] < 0.05 {
		t.Errorf("expected minimum-image distance near 0.1, got %v", d[0])
	}
}
