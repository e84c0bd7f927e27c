package spud

import (
	"sync/atomic"
	"time"

	"github.com/go-spud/spud-go/internal/interfaces"
)

// LatencyBuckets defines the handshake-latency histogram buckets in
// nanoseconds, covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks datagram, tube, and handshake statistics for a manager.
type Metrics struct {
	// Datagram counters
	DatagramsIn  atomic.Uint64
	DatagramsOut atomic.Uint64
	BytesIn      atomic.Uint64
	BytesOut     atomic.Uint64

	// Per-command counters, received and sent
	DataIn   atomic.Uint64
	OpenIn   atomic.Uint64
	CloseIn  atomic.Uint64
	AckIn    atomic.Uint64
	DataOut  atomic.Uint64
	OpenOut  atomic.Uint64
	CloseOut atomic.Uint64
	AckOut   atomic.Uint64

	// Drops of every reason, recorded as one aggregate; RecordDrop does not
	// keep per-reason counts.
	Drops atomic.Uint64

	// Tube population
	TubeCount    atomic.Uint32 // current
	MaxTubeCount atomic.Uint32 // high-water mark

	// Handshake latency
	TotalHandshakeNs atomic.Uint64
	HandshakeCount   atomic.Uint64
	LatencyBuckets   [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano
}

// NewMetrics creates a metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDatagramIn records one received datagram of the given command.
func (m *Metrics) RecordDatagramIn(bytes uint64, cmd byte) {
	m.DatagramsIn.Add(1)
	m.BytesIn.Add(bytes)
	switch cmd & 0xC0 {
	case 0x00:
		m.DataIn.Add(1)
	case 0x40:
		m.OpenIn.Add(1)
	case 0x80:
		m.CloseIn.Add(1)
	case 0xC0:
		m.AckIn.Add(1)
	}
}

// RecordDatagramOut records one sent datagram of the given command.
func (m *Metrics) RecordDatagramOut(bytes uint64, cmd byte) {
	m.DatagramsOut.Add(1)
	m.BytesOut.Add(bytes)
	switch cmd & 0xC0 {
	case 0x00:
		m.DataOut.Add(1)
	case 0x40:
		m.OpenOut.Add(1)
	case 0x80:
		m.CloseOut.Add(1)
	case 0xC0:
		m.AckOut.Add(1)
	}
}

// RecordDrop records one dropped inbound datagram.
func (m *Metrics) RecordDrop(reason string) {
	m.Drops.Add(1)
}

// RecordHandshake records one completed OPEN/ACK handshake and its latency.
func (m *Metrics) RecordHandshake(latencyNs uint64) {
	m.TotalHandshakeNs.Add(latencyNs)
	m.HandshakeCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordTubeCount updates the current tube population and its high-water
// mark.
func (m *Metrics) RecordTubeCount(count uint32) {
	m.TubeCount.Store(count)
	for {
		current := m.MaxTubeCount.Load()
		if count <= current {
			break
		}
		if m.MaxTubeCount.CompareAndSwap(current, count) {
			break
		}
	}
}

// Stop marks the manager as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics, safe to
// read or serialize without further synchronization.
type MetricsSnapshot struct {
	DatagramsIn  uint64
	DatagramsOut uint64
	BytesIn      uint64
	BytesOut     uint64

	DataIn   uint64
	OpenIn   uint64
	CloseIn  uint64
	AckIn    uint64
	DataOut  uint64
	OpenOut  uint64
	CloseOut uint64
	AckOut   uint64

	Drops uint64

	TubeCount    uint32
	MaxTubeCount uint32

	AvgHandshakeNs uint64
	HandshakeP50Ns uint64
	HandshakeP99Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	UptimeNs uint64
}

// Snapshot returns a consistent-enough point-in-time copy of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		DatagramsIn:  m.DatagramsIn.Load(),
		DatagramsOut: m.DatagramsOut.Load(),
		BytesIn:      m.BytesIn.Load(),
		BytesOut:     m.BytesOut.Load(),
		DataIn:       m.DataIn.Load(),
		OpenIn:       m.OpenIn.Load(),
		CloseIn:      m.CloseIn.Load(),
		AckIn:        m.AckIn.Load(),
		DataOut:      m.DataOut.Load(),
		OpenOut:      m.OpenOut.Load(),
		CloseOut:     m.CloseOut.Load(),
		AckOut:       m.AckOut.Load(),
		Drops:        m.Drops.Load(),
		TubeCount:    m.TubeCount.Load(),
		MaxTubeCount: m.MaxTubeCount.Load(),
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	handshakeCount := m.HandshakeCount.Load()
	if handshakeCount > 0 {
		snap.AvgHandshakeNs = m.TotalHandshakeNs.Load() / handshakeCount
		snap.HandshakeP50Ns = m.calculatePercentile(0.50)
		snap.HandshakeP99Ns = m.calculatePercentile(0.99)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// calculatePercentile estimates the handshake latency at the given
// percentile (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	total := m.HandshakeCount.Load()
	if total == 0 {
		return 0
	}
	targetCount := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes every counter and restarts StartTime at now.
func (m *Metrics) Reset() {
	m.DatagramsIn.Store(0)
	m.DatagramsOut.Store(0)
	m.BytesIn.Store(0)
	m.BytesOut.Store(0)
	m.DataIn.Store(0)
	m.OpenIn.Store(0)
	m.CloseIn.Store(0)
	m.AckIn.Store(0)
	m.DataOut.Store(0)
	m.OpenOut.Store(0)
	m.CloseOut.Store(0)
	m.AckOut.Store(0)
	m.Drops.Store(0)
	m.TubeCount.Store(0)
	m.MaxTubeCount.Store(0)
	m.TotalHandshakeNs.Store(0)
	m.HandshakeCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver implements internal/interfaces.Observer by recording into
// a Metrics instance, so it plugs directly into manager.Config.Observer.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver builds an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDatagramIn(bytes uint64, cmd byte) {
	o.metrics.RecordDatagramIn(bytes, cmd)
}

func (o *MetricsObserver) ObserveDatagramOut(bytes uint64, cmd byte) {
	o.metrics.RecordDatagramOut(bytes, cmd)
}

func (o *MetricsObserver) ObserveHandshake(latencyNs uint64) {
	o.metrics.RecordHandshake(latencyNs)
}

func (o *MetricsObserver) ObserveDrop(reason string) {
	o.metrics.RecordDrop(reason)
}

func (o *MetricsObserver) ObserveTubeCount(count uint32) {
	o.metrics.RecordTubeCount(count)
}

// NoOpObserver discards every observation; the zero value is ready to use.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDatagramIn(uint64, byte)  {}
func (NoOpObserver) ObserveDatagramOut(uint64, byte) {}
func (NoOpObserver) ObserveHandshake(uint64)         {}
func (NoOpObserver) ObserveDrop(string)              {}
func (NoOpObserver) ObserveTubeCount(uint32)         {}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
