package flashfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see the metrics/prometheus package.
type MetricsCollector interface {
	// RecordMount is called after each mount attempt.
	RecordMount(duration time.Duration, err error)

	// RecordOpen is called after each open.
	RecordOpen(duration time.Duration, err error)

	// RecordRead is called after each read with the number of bytes returned.
	RecordRead(bytes int, duration time.Duration, err error)

	// RecordWrite is called after each write with the number of bytes stored.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordRemove is called after each remove.
	RecordRemove(duration time.Duration, err error)

	// RecordDevice is called after each device callback. op is "read",
	// "write" or "erase".
	RecordDevice(op string, bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMount(time.Duration, error)               {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)                {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)              {}
func (NoopMetricsCollector) RecordDevice(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MountCount      atomic.Int64
	MountErrors     atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	ReadCount       atomic.Int64
	ReadBytes       atomic.Int64
	ReadErrors      atomic.Int64
	WriteCount      atomic.Int64
	WriteBytes      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
	RemoveCount     atomic.Int64
	RemoveErrors    atomic.Int64
	DeviceReads     atomic.Int64
	DeviceWrites    atomic.Int64
	DeviceErases    atomic.Int64
	DeviceErrors    atomic.Int64
}

// RecordMount implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMount(_ time.Duration, err error) {
	b.MountCount.Add(1)
	if err != nil {
		b.MountErrors.Add(1)
	}
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, _ time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(int64(bytes))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordDevice implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDevice(op string, _ int, _ time.Duration, err error) {
	switch op {
	case "read":
		b.DeviceReads.Add(1)
	case "write":
		b.DeviceWrites.Add(1)
	case "erase":
		b.DeviceErases.Add(1)
	}
	if err != nil {
		b.DeviceErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MountCount:    b.MountCount.Load(),
		MountErrors:   b.MountErrors.Load(),
		OpenCount:     b.OpenCount.Load(),
		OpenErrors:    b.OpenErrors.Load(),
		ReadCount:     b.ReadCount.Load(),
		ReadBytes:     b.ReadBytes.Load(),
		ReadErrors:    b.ReadErrors.Load(),
		WriteCount:    b.WriteCount.Load(),
		WriteBytes:    b.WriteBytes.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteAvgNanos: b.getAvgWriteNanos(),
		RemoveCount:   b.RemoveCount.Load(),
		RemoveErrors:  b.RemoveErrors.Load(),
		DeviceReads:   b.DeviceReads.Load(),
		DeviceWrites:  b.DeviceWrites.Load(),
		DeviceErases:  b.DeviceErases.Load(),
		DeviceErrors:  b.DeviceErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgWriteNanos() int64 {
	count := b.WriteCount.Load()
	if count == 0 {
		return 0
	}
	return b.WriteTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MountCount    int64
	MountErrors   int64
	OpenCount     int64
	OpenErrors    int64
	ReadCount     int64
	ReadBytes     int64
	ReadErrors    int64
	WriteCount    int64
	WriteBytes    int64
	WriteErrors   int64
	WriteAvgNanos int64
	RemoveCount   int64
	RemoveErrors  int64
	DeviceReads   int64
	DeviceWrites  int64
	DeviceErases  int64
	DeviceErrors  int64
}
