package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dewiweb/holophonix-animator-sub000/internal/config"
	"github.com/dewiweb/holophonix-animator-sub000/kb"
)

// exporter prints one line per track and frame, addressed the way the
// spatial audio server expects: /track/<id>/xyz in metres or
// /track/<id>/aed in degrees and metres.
type exporter struct {
	w         *bufio.Writer
	spherical bool
}

func newExporter(w io.Writer, format string) (*exporter, error) {
	switch format {
	case config.FormatCartesian:
		return &exporter{w: bufio.NewWriter(w)}, nil
	case config.FormatSpherical:
		return &exporter{w: bufio.NewWriter(w), spherical: true}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFrame writes every position and flushes.
func (e *exporter) WriteFrame(t time.Duration, positions []kb.TrackPosition) error {
	for _, p := range positions {
		if e.spherical {
			az, el, d := p.Position.ToSpherical()
			fmt.Fprintf(e.w, "%.3f /track/%s/aed %.4f %.4f %.4f\n",
				t.Seconds(), p.ID, az*180/math.Pi, el*180/math.Pi, d)
			continue
		}
		fmt.Fprintf(e.w, "%.3f /track/%s/xyz %.4f %.4f %.4f\n",
			t.Seconds(), p.ID, p.Position.X, p.Position.Y, p.Position.Z)
	}
	return e.w.Flush()
}
