package prometheus

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flashfs"
	"github.com/hupe1980/flashfs/blockdev"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "")
	require.NoError(t, err)

	c.RecordMount(time.Millisecond, nil)
	c.RecordOpen(time.Millisecond, errors.New("boom"))
	c.RecordRead(10, time.Millisecond, nil)
	c.RecordWrite(32, time.Millisecond, nil)
	c.RecordWrite(0, time.Millisecond, errors.New("full"))
	c.RecordRemove(time.Millisecond, nil)
	c.RecordDevice("erase", 4096, time.Microsecond, nil)
	c.RecordDevice("write", 8, time.Microsecond, errors.New("io"))

	assert.InDelta(t, 10, testutil.ToFloat64(c.opBytes.WithLabelValues("read")), 0)
	assert.InDelta(t, 32, testutil.ToFloat64(c.opBytes.WithLabelValues("write")), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(c.deviceBytes.WithLabelValues("erase")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.deviceBytes.WithLabelValues("write")), 0)

	assert.Equal(t, 1, testutil.CollectAndCount(c.opLatency.WithLabelValues("open", "error").(prometheus.Histogram)))

	n, err := testutil.GatherAndCount(reg, "flashfs_operation_latency_seconds")
	require.NoError(t, err)
	// mount/ok, open/error, read/ok, write/ok, write/error, remove/ok
	assert.Equal(t, 6, n)
}

func TestCollector_RegisterTwiceReuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg, "fs")
	require.NoError(t, err)
	b, err := NewCollector(reg, "fs")
	require.NoError(t, err)

	a.RecordRead(5, time.Millisecond, nil)
	b.RecordRead(5, time.Millisecond, nil)
	assert.InDelta(t, 10, testutil.ToFloat64(a.opBytes.WithLabelValues("read")), 0)
}

func TestCollector_WithMount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNewCollector(reg, "flashfs")

	const size = 64 * 1024
	dev, err := blockdev.NewMemory(size, 4096)
	require.NoError(t, err)
	geo := flashfs.Geometry{PhysSize: size, PhysEraseBlock: 4096, LogPageSize: 256, LogBlockSize: 4096}

	fs, err := flashfs.Mount(geo, dev, flashfs.WithMetricsCollector(c))
	require.NoError(t, err)
	f, err := fs.Open("metrics.txt", flashfs.ModeWrite)
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, fs.Unmount())

	assert.InDelta(t, 5, testutil.ToFloat64(c.opBytes.WithLabelValues("write")), 0)
	assert.Positive(t, testutil.ToFloat64(c.deviceBytes.WithLabelValues("write")))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `flashfs_operation_latency_seconds_count{op="mount",status="ok"} 1`))
}
