package spud

import "testing"

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.DatagramsIn != 0 {
		t.Errorf("expected 0 initial datagrams in, got %d", snap.DatagramsIn)
	}

	m.RecordDatagramIn(21, 0x00) // DATA
	m.RecordDatagramIn(13, 0x40) // OPEN
	m.RecordDatagramOut(13, 0xC0) // ACK
	m.RecordDrop("parse")

	snap = m.Snapshot()
	if snap.DatagramsIn != 2 {
		t.Errorf("expected 2 datagrams in, got %d", snap.DatagramsIn)
	}
	if snap.DataIn != 1 {
		t.Errorf("expected 1 DATA in, got %d", snap.DataIn)
	}
	if snap.OpenIn != 1 {
		t.Errorf("expected 1 OPEN in, got %d", snap.OpenIn)
	}
	if snap.AckOut != 1 {
		t.Errorf("expected 1 ACK out, got %d", snap.AckOut)
	}
	if snap.BytesIn != 34 {
		t.Errorf("expected 34 bytes in, got %d", snap.BytesIn)
	}
	if snap.Drops != 1 {
		t.Errorf("expected 1 drop, got %d", snap.Drops)
	}
}

func TestMetricsTubeCountTracksHighWaterMark(t *testing.T) {
	m := NewMetrics()
	m.RecordTubeCount(3)
	m.RecordTubeCount(7)
	m.RecordTubeCount(2)

	snap := m.Snapshot()
	if snap.TubeCount != 2 {
		t.Errorf("expected current tube count 2, got %d", snap.TubeCount)
	}
	if snap.MaxTubeCount != 7 {
		t.Errorf("expected max tube count 7, got %d", snap.MaxTubeCount)
	}
}

func TestMetricsHandshakeLatencyPercentiles(t *testing.T) {
	m := NewMetrics()
	for _, ns := range []uint64{500_000, 1_000_000, 2_000_000, 50_000_000} {
		m.RecordHandshake(ns)
	}

	snap := m.Snapshot()
	if snap.AvgHandshakeNs == 0 {
		t.Error("expected a non-zero average handshake latency")
	}
	if snap.HandshakeP50Ns == 0 {
		t.Error("expected a non-zero p50 handshake latency")
	}
	if snap.HandshakeP99Ns < snap.HandshakeP50Ns {
		t.Errorf("expected p99 (%d) >= p50 (%d)", snap.HandshakeP99Ns, snap.HandshakeP50Ns)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordDatagramIn(10, 0x00)
	m.RecordTubeCount(5)
	m.Reset()

	snap := m.Snapshot()
	if snap.DatagramsIn != 0 || snap.TubeCount != 0 {
		t.Errorf("expected zeroed metrics after Reset, got %+v", snap)
	}
}

func TestMetricsObserverDelegatesToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveDatagramIn(21, 0x00)
	obs.ObserveDatagramOut(13, 0xC0)
	obs.ObserveHandshake(1_000_000)
	obs.ObserveDrop("unknown_tube")
	obs.ObserveTubeCount(4)

	snap := m.Snapshot()
	if snap.DatagramsIn != 1 || snap.DatagramsOut != 1 {
		t.Errorf("expected observer to record into the backing metrics, got %+v", snap)
	}
	if snap.TubeCount != 4 {
		t.Errorf("expected tube count 4, got %d", snap.TubeCount)
	}
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs NoOpObserver
	// Exercising every method once is enough to confirm none of them panic.
	obs.ObserveDatagramIn(1, 0)
	obs.ObserveDatagramOut(1, 0)
	obs.ObserveHandshake(1)
	obs.ObserveDrop("x")
	obs.ObserveTubeCount(1)
}
