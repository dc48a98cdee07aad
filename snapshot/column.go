// Package snapshot implements the column (text) and binary snapshot
// formats, and the gocsv-backed telemetry/perf streaming used by the
// driver.
package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kestrel-sim/sphgrav/particle"
	"github.com/kestrel-sim/sphgrav/simerr"
)

// WriteColumn writes the text snapshot format: a header line with
// time, ndim, Nhydro, then one row per real particle with columns
// r[0..d) v[0..d) m h rho u.
func WriteColumn(w io.Writer, store *particle.Store, ndim int, time float64) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%.17g %d %d\n", time, ndim, store.Nreal); err != nil {
		return simerr.Wrap(simerr.KindIOFailure, 0, -1, "writing column header", err)
	}
	for i := 0; i < store.Nreal; i++ {
		p := &store.Particles[i]
		var sb strings.Builder
		for a := 0; a < ndim; a++ {
			fmt.Fprintf(&sb, "%.17g ", p.R[a])
		}
		for a := 0; a < ndim; a++ {
			fmt.Fprintf(&sb, "%.17g ", p.V[a])
		}
		fmt.Fprintf(&sb, "%.17g %.17g %.17g %.17g\n", p.M, p.H, p.Rho, p.U)
		if _, err := bw.WriteString(sb.String()); err != nil {
			return simerr.Wrap(simerr.KindIOFailure, 0, i, "writing column row", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return simerr.Wrap(simerr.KindIOFailure, 0, -1, "flushing column snapshot", err)
	}
	return nil
}

// ReadColumn reads the text snapshot format back into a freshly
// allocated Store with no ghost capacity reserved (callers needing
// ghosts should call particle.New themselves and copy fields across).
func ReadColumn(r io.Reader) (store *particle.Store, ndim int, time float64, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	if !sc.Scan() {
		return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, -1, "empty column snapshot")
	}
	header := strings.Fields(sc.Text())
	if len(header) != 3 {
		return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, -1, "malformed column header")
	}
	time, err1 := strconv.ParseFloat(header[0], 64)
	ndim64, err2 := strconv.Atoi(header[1])
	n, err3 := strconv.Atoi(header[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, -1, "malformed column header fields")
	}
	ndim = ndim64
	store = particle.New(n, 0)

	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, i, "truncated column snapshot")
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 2*ndim+4 {
			return nil, 0, 0, simerr.New(simerr.KindIOFailure, 0, i, "malformed column row")
		}
		p := &store.Particles[i]
		idx := 0
		for a := 0; a < ndim; a++ {
			p.R[a], _ = strconv.ParseFloat(fields[idx], 64)
			idx++
		}
		for a := 0; a < ndim; a++ {
			p.V[a], _ = strconv.ParseFloat(fields[idx], 64)
			idx++
		}
		p.M, _ = strconv.ParseFloat(fields[idx], 64)
		idx++
		p.H, _ = strconv.ParseFloat(fields[idx], 64)
		idx++
		p.Rho, _ = strconv.ParseFloat(fields[idx], 64)
		idx++
		p.U, _ = strconv.ParseFloat(fields[idx], 64)
		p.Alive = true
	}
	if err := sc.Err(); err != nil {
		return nil, 0, 0, simerr.Wrap(simerr.KindIOFailure, 0, -1, "scanning column snapshot", err)
	}
	return store, ndim, time, nil
}
