package recorder

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
)

// Snapshotter saves every Nth frame it is offered as a PNG file.
type Snapshotter struct {
	dir   string
	every uint64
}

// NewSnapshotter creates dir if needed. every below 1 is treated as 1.
func NewSnapshotter(dir string, every int) (*Snapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating snapshot dir %s", dir)
	}
	if every < 1 {
		every = 1
	}
	return &Snapshotter{dir: dir, every: uint64(every)}, nil
}

// Offer writes the frame when seq falls on the snapshot interval and
// returns the file written, or "" when the frame was skipped.
func (s *Snapshotter) Offer(seq uint64, frame ingest.DecodedFrame) (string, error) {
	if seq%s.every != 0 {
		return "", nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("red-%08d.png", seq))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	if err := png.Encode(f, frame.Image()); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "encoding %s", path)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
