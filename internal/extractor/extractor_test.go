package extractor

import (
	"NetSentry/internal/model"
	"NetSentry/internal/testutil/pcaptest"
	"NetSentry/pkg/pcap"
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/zeebo/blake3"
)

func writeSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcap")
	packets := pcaptest.Session(10, 100, time.Millisecond)
	// a second, unrelated conversation that starts later
	packets = append(packets,
		pcaptest.Packet{Time: pcaptest.Base.Add(time.Second), Src: "10.0.0.7", Dst: "8.8.8.8", SrcPort: 5353, DstPort: 53, Protocol: 17, Size: 80},
		pcaptest.Packet{Time: pcaptest.Base.Add(time.Second + time.Millisecond), Src: "8.8.8.8", Dst: "10.0.0.7", SrcPort: 53, DstPort: 5353, Protocol: 17, Size: 120},
	)
	pcaptest.WriteFile(t, path, packets)
	return path
}

func TestExtract_Session(t *testing.T) {
	path := writeSession(t)
	res, err := New(DefaultConfig()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.Valid || res.Err() != nil {
		t.Fatalf("Expected a valid result, got %+v", res)
	}
	if res.Stats.Frames != 16 || res.Stats.Packets != 16 || res.Stats.Skipped != 0 {
		t.Errorf("Unexpected stats %+v", res.Stats)
	}
	if len(res.Flows) != 2 || res.Stats.Flows != 2 {
		t.Fatalf("Expected 2 flows, got %d", len(res.Flows))
	}

	primary, ok := res.Primary()
	if !ok {
		t.Fatalf("Expected a primary flow")
	}
	if primary.FlowID != "192.168.1.100:12345->10.0.0.5:80" {
		t.Errorf("Unexpected primary flow id %q", primary.FlowID)
	}
	if primary.Src != "192.168.1.100" || primary.Dst != "10.0.0.5" {
		t.Errorf("Unexpected endpoints %s -> %s", primary.Src, primary.Dst)
	}
	if got := primary.Features["init_win_bytes_forward"]; got != 8192 {
		t.Errorf("Expected initial forward window 8192, got %v", got)
	}
	if got := primary.Features["flow_iat_min"]; got != 1000 {
		t.Errorf("Expected flow IAT min 1000us, got %v", got)
	}
	if res.Flows[1].Protocol != 17 || res.Flows[1].FlowID != "10.0.0.7:5353->8.8.8.8:53" {
		t.Errorf("Unexpected second flow %+v", res.Flows[1])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read capture: %v", err)
	}
	if sum := blake3.Sum256(data); res.CaptureDigest != hex.EncodeToString(sum[:]) {
		t.Errorf("Unexpected capture digest %q", res.CaptureDigest)
	}
	if res.RunID == "" {
		t.Errorf("Expected a run id")
	}
}

func TestExtract_Deterministic(t *testing.T) {
	path := writeSession(t)
	e := New(DefaultConfig())

	first, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	second, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	if first.RunID == second.RunID {
		t.Errorf("Expected distinct run ids")
	}
	if first.CaptureDigest != second.CaptureDigest {
		t.Errorf("Digest changed between runs")
	}
	if !reflect.DeepEqual(first.Flows, second.Flows) {
		t.Errorf("Flows differ between runs:\n%+v\n%+v", first.Flows, second.Flows)
	}
}

func ack(at time.Duration, src, dst string, sport, dport uint16) pcaptest.Packet {
	return pcaptest.Packet{Time: pcaptest.Base.Add(at), Src: src, Dst: dst, SrcPort: sport, DstPort: dport,
		Flags: model.FlagACK, Window: 512}
}

// Header sums come from the whole capture, so every epoch of a key sees the same value.
func TestExtract_EpochsShareHandshakeState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epochs.pcap")
	pcaptest.WriteFile(t, path, []pcaptest.Packet{
		ack(0, "10.0.0.1", "10.0.0.2", 4000, 80),
		ack(3*time.Minute, "10.0.0.1", "10.0.0.2", 4000, 80),
		ack(3*time.Minute+time.Millisecond, "10.0.0.1", "10.0.0.2", 4000, 80),
	})

	cfg := DefaultConfig()
	cfg.IdleTimeout = 2 * time.Minute
	res, err := New(cfg).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Flows) != 2 {
		t.Fatalf("Expected 2 epochs, got %d", len(res.Flows))
	}
	wantPackets := []uint64{1, 2}
	for i, f := range res.Flows {
		if f.PacketCount != wantPackets[i] {
			t.Errorf("epoch %d: expected %d packets, got %d", i, wantPackets[i], f.PacketCount)
		}
		if got := f.Features["fwd_header_length"]; got != 120 {
			t.Errorf("epoch %d: expected fwd_header_length 120, got %v", i, got)
		}
		if got := f.Features["init_win_bytes_forward"]; got != 512 {
			t.Errorf("epoch %d: expected init_win_bytes_forward 512, got %v", i, got)
		}
	}
	if !res.Flows[0].FirstSeen.Before(res.Flows[1].FirstSeen) {
		t.Errorf("Epochs out of order")
	}
}

func TestExtract_SweepDoesNotChangeResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.pcap")
	// The sweep at the unrelated packet closes the first flow before its key shows up again.
	pcaptest.WriteFile(t, path, []pcaptest.Packet{
		ack(0, "10.0.0.1", "10.0.0.2", 4000, 80),
		ack(3*time.Minute, "10.0.0.3", "10.0.0.4", 5000, 443),
		ack(3*time.Minute+time.Millisecond, "10.0.0.1", "10.0.0.2", 4000, 80),
	})

	cfg := DefaultConfig()
	cfg.IdleTimeout = 2 * time.Minute
	plain, err := New(cfg).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	cfg.SweepInterval = time.Second
	swept, err := New(cfg).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract with sweeping failed: %v", err)
	}

	if len(plain.Flows) != 3 {
		t.Fatalf("Expected 3 flows, got %d", len(plain.Flows))
	}
	if got := plain.Flows[0].Features["fwd_header_length"]; got != 80 {
		t.Errorf("Expected fwd_header_length 80 for the first epoch, got %v", got)
	}
	if !reflect.DeepEqual(plain.Flows, swept.Flows) {
		t.Errorf("Sweeping changed the flows:\n%+v\n%+v", plain.Flows, swept.Flows)
	}
}

func TestExtract_NonEthernetLinkType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.pcap")
	frame := pcaptest.Frame(t, pcaptest.Packet{Src: "10.0.0.1", Dst: "10.0.0.2", SrcPort: 1, DstPort: 2, Size: 100})
	pcaptest.WriteRaw(t, path, layers.LinkTypeRaw, []time.Time{pcaptest.Base}, [][]byte{frame})

	res, err := New(DefaultConfig()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Valid || len(res.Flows) != 0 {
		t.Errorf("Expected an invalid result without flows, got %+v", res)
	}
	if res.Stats.Frames != 1 || res.Stats.Skipped != 1 || res.Stats.Packets != 0 {
		t.Errorf("Expected the frame to be skipped, got %+v", res.Stats)
	}
}

func TestExtract_NoIPv4Traffic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arp.pcap")
	frame := pcaptest.Frame(t, pcaptest.Packet{Src: "10.0.0.1", Dst: "10.0.0.2", SrcPort: 1, DstPort: 2, Size: 60})
	frame[12], frame[13] = 0x08, 0x06
	pcaptest.WriteRaw(t, path, layers.LinkTypeEthernet,
		[]time.Time{pcaptest.Base, pcaptest.Base.Add(time.Second)}, [][]byte{frame, frame})

	res, err := New(DefaultConfig()).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Valid {
		t.Errorf("Expected an invalid result")
	}
	if res.Error != "no flows found" {
		t.Errorf("Unexpected error reason %q", res.Error)
	}
	if !errors.Is(res.Err(), ErrNoFlowsFound) {
		t.Errorf("Expected ErrNoFlowsFound, got %v", res.Err())
	}
	if res.Stats.Frames != 2 || res.Stats.Skipped != 2 {
		t.Errorf("Expected 2 skipped frames, got %+v", res.Stats)
	}
	if _, ok := res.Primary(); ok {
		t.Errorf("Expected no primary flow")
	}
}

func TestExtract_FatalErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.pcap")
	if err := os.WriteFile(corrupt, []byte("garbage garbage garbage"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	e := New(DefaultConfig())
	if _, err := e.Extract(context.Background(), filepath.Join(dir, "missing.pcap")); !errors.Is(err, pcap.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := e.Extract(context.Background(), corrupt); !errors.Is(err, pcap.ErrCorruptCapture) {
		t.Errorf("Expected ErrCorruptCapture, got %v", err)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	path := writeSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(DefaultConfig()).Extract(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if res != nil {
		t.Errorf("Expected no partial result")
	}
}

func TestExtract_DebugLogsHandshakePackets(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	path := filepath.Join(t.TempDir(), "session.pcap")
	pcaptest.WriteFile(t, path, pcaptest.Session(10, 100, time.Millisecond))
	if _, err := New(DefaultConfig()).Extract(context.Background(), path); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, entry := range hook.AllEntries() {
		if entry.Message != "Flow mapped" {
			continue
		}
		// SYN, ACK, 10 data frames and FIN forward; SYN-ACK backward
		if got := entry.Data["fwd_handshake_pkts"]; got != uint64(13) {
			t.Errorf("Expected 13 forward packets, got %v", got)
		}
		if got := entry.Data["bwd_handshake_pkts"]; got != uint64(1) {
			t.Errorf("Expected 1 backward packet, got %v", got)
		}
		return
	}
	t.Errorf("Expected a debug entry for the mapped flow")
}
