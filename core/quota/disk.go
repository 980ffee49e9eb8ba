package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/dmitrymomot/filedrop/core/logger"
)

// StorageInfo is a point-in-time view of the filesystem holding the root.
type StorageInfo struct {
	TotalBytes  uint64  `json:"totalBytes"`
	FreeBytes   uint64  `json:"freeBytes"`
	UsedBytes   uint64  `json:"usedBytes"`
	UsedPercent float64 `json:"usedPercent"`
}

// ErrDiskFull is returned by Probe when no space is left.
var ErrDiskFull = errors.New("no free space left on storage volume")

// Prober reports total and available bytes of the filesystem holding path.
type Prober func(path string) (total, free uint64, err error)

// Disk probes free space for a single directory.
type Disk struct {
	path   string
	probe  Prober
	logger *slog.Logger
}

// DiskOption configures a Disk.
type DiskOption func(*Disk)

// WithLogger sets the logger used to report probe failures.
func WithLogger(l *slog.Logger) DiskOption {
	return func(d *Disk) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProber replaces the platform statfs probe.
func WithProber(p Prober) DiskOption {
	return func(d *Disk) {
		if p != nil {
			d.probe = p
		}
	}
}

// NewDisk creates a Disk for path.
func NewDisk(path string, opts ...DiskOption) *Disk {
	d := &Disk{
		path:   path,
		probe:  statfs,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Info returns current capacity figures, or zeros when the probe fails.
func (d *Disk) Info() StorageInfo {
	total, free, err := d.probe(d.path)
	if err != nil {
		d.logger.Warn("disk probe failed",
			logger.Component("quota"),
			logger.Path(d.path),
			logger.Error(err))
		return StorageInfo{}
	}
	if total == 0 {
		return StorageInfo{}
	}
	free = min(free, total)

	used := total - free
	return StorageInfo{
		TotalBytes:  total,
		FreeBytes:   free,
		UsedBytes:   used,
		UsedPercent: math.Round(float64(used)/float64(total)*10000) / 100,
	}
}

// HasEnoughSpace reports whether required bytes fit into the free space.
// It returns false when the probe fails.
func (d *Disk) HasEnoughSpace(required int64) bool {
	_, free, err := d.probe(d.path)
	if err != nil {
		d.logger.Warn("disk probe failed, refusing write",
			logger.Component("quota"),
			logger.Path(d.path),
			logger.Error(err))
		return false
	}

	need := uint64(max(required, 0))
	if need > free {
		d.logger.Info("insufficient disk space",
			logger.Component("quota"),
			slog.String("required", humanize.IBytes(need)),
			slog.String("free", humanize.IBytes(free)))
		return false
	}
	return true
}

// Probe is a readiness check: it fails when the filesystem cannot be
// queried or has no free space left.
func (d *Disk) Probe(context.Context) error {
	_, free, err := d.probe(d.path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", d.path, err)
	}
	if free == 0 {
		return ErrDiskFull
	}
	return nil
}
