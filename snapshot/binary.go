package snapshot

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
)

// binaryMagic is the fixed 4-byte magic for the binary snapshot
// format.
const binaryMagic = "SRN1"

// binaryVersion is the current on-disk struct-of-arrays layout
// version.
const binaryVersion = 1

// WriteBinary writes the big-endian binary snapshot format: a fixed
// header (magic, ndim, version, time, N) followed by struct-of-arrays
// blocks per field (r, v, m, h, rho, u, flags).
func WriteBinary(w io.Writer, store *particle.Store, ndim int, time float64) error {
	n := store.Nreal
	if err := writeHeader(w, ndim, time, n); err != nil {
		return err
	}

	writeBlock := func(get func(i int) []float64, width int) error {
		buf := make([]byte, 8*width)
		for i := 0; i < n; i++ {
			vals := get(i)
			for k := 0; k < width; k++ {
				binary.BigEndian.PutUint64(buf[8*k:8*k+8], math.Float64bits(vals[k]))
			}
			if _, err := w.Write(buf); err != nil {
				return simerr.Wrap(simerr.KindIOFailure, 0, i, "writing binary block", err)
			}
		}
		return nil
	}

	if err := writeBlock(func(i int) []float64 { r := store.Particles[i].R; return r[:ndim] }, ndim); err != nil {
		return err
	}
	if err := writeBlock(func(i int) []float64 { v := store.Particles[i].V; return v[:ndim] }, ndim); err != nil {
		return err
	}
	if err := writeBlock(func(i int) []float64 { return []float64{store.Particles[i].M} }, 1); err != nil {
		return err
	}
	if err := writeBlock(func(i int) []float64 { return []float64{store.Particles[i].H} }, 1); err != nil {
		return err
	}
	if err := writeBlock(func(i int) []float64 { return []float64{store.Particles[i].Rho} }, 1); err != nil {
		return err
	}
	if err := writeBlock(func(i int) []float64 { return []float64{store.Particles[i].U} }, 1); err != nil {
		return err
	}

	flags := make([]byte, n)
	for i := 0; i < n; i++ {
		if store.Particles[i].Alive {
			flags[i] = 1
		}
	}
	if _, err := w.Write(flags); err != nil {
		return simerr.Wrap(simerr.KindIOFailure, 0, -1, "writing flags block", err)
	}
	return nil
}

func writeHeader(w io.Writer, ndim int, time float64, n int) error {
	var hdr [4 + 1 + 1 + 8 + 8]byte
	copy(hdr[0:4], binaryMagic)
	hdr[4] = byte(ndim)
	hdr[5] = byte(binaryVersion)
	binary.BigEndian.PutUint64(hdr[6:14], math.Float64bits(time))
	binary.BigEndian.PutUint64(hdr[14:22], uint64(n))
	if _, err := w.Write(hdr[:]); err != nil {
		return simerr.Wrap(simerr.KindIOFailure, 0, -1, "writing binary header", err)
	}
	return nil
}

// ReadBinary reads the binary snapshot format written by WriteBinary.
func ReadBinary(r io.Reader) (store *particle.Store, ndim int, time float64, err error) {
	var hdr [4 + 1 + 1 + 8 + 8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, 0, 0, simerr.Wrap(simerr.KindIOFailure, 0, -1, "reading binary header", err)
	}
	if string(hdr[0:4]) != binaryMagic {
		return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, -1, "bad magic in binary snapshot")
	}
	ndim = int(hdr[4])
	time = math.Float64frombits(binary.BigEndian.Uint64(hdr[6:14]))
	n := int(binary.BigEndian.Uint64(hdr[14:22]))
	store = particle.New(n, 0)

	readBlock := func(set func(i int, vals []float64), width int) error {
		buf := make([]byte, 8*width)
		vals := make([]float64, width)
		for i := 0; i < n; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return simerr.Wrap(simerr.KindIOFailure, 0, i, "reading binary block", err)
			}
			for k := 0; k < width; k++ {
				vals[k] = math.Float64frombits(binary.BigEndian.Uint64(buf[8*k : 8*k+8]))
			}
			set(i, vals)
		}
		return nil
	}

	if err := readBlock(func(i int, vals []float64) {
		for a := 0; a < ndim; a++ {
			store.Particles[i].R[a] = vals[a]
		}
	}, ndim); err != nil {
		return nil, 0, 0, err
	}
	if err := readBlock(func(i int, vals []float64) {
		for a := 0; a < ndim; a++ {
			store.Particles[i].V[a] = vals[a]
		}
	}, ndim); err != nil {
		return nil, 0, 0, err
	}
	if err := readBlock(func(i int, vals []float64) { store.Particles[i].M = vals[0] }, 1); err != nil {
		return nil, 0, 0, err
	}
	if err := readBlock(func(i int, vals []float64) { store.Particles[i].H = vals[0] }, 1); err != nil {
		return nil, 0, 0, err
	}
	if err := readBlock(func(i int, vals []float64) { store.Particles[i].Rho = vals[0] }, 1); err != nil {
		return nil, 0, 0, err
	}
	if err := readBlock(func(i int, vals []float64) { store.Particles[i].U = vals[0] }, 1); err != nil {
		return nil, 0, 0, err
	}

	flags := make([]byte, n)
	if _, err := io.ReadFull(r, flags); err != nil {
		return nil, 0, 0, simerr.Wrap(simerr.KindIOFailure, 0, -1, "reading flags block", err)
	}
	for i := 0; i < n; i++ {
		store.Particles[i].Alive = flags[i] != 0
	}

	return store, ndim, time, nil
}
