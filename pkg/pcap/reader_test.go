package pcap

import (
	"NetSentry/internal/testutil/pcaptest"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/zeebo/blake3"
)

func wantDigest(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func readAll(t *testing.T, r *Reader) int {
	t.Helper()
	count := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			return count
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
}

func TestReader_Next(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	packets := pcaptest.Session(10, 100, time.Millisecond)
	pcaptest.WriteFile(t, path, packets)

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	if reader.LinkType() != layers.LinkTypeEthernet {
		t.Errorf("Expected Ethernet link type, got %v", reader.LinkType())
	}

	first, err := reader.Next()
	if err != nil {
		t.Fatalf("Failed to read first frame: %v", err)
	}
	if !first.Timestamp.Equal(packets[0].Time) {
		t.Errorf("Expected timestamp %v, got %v", packets[0].Time, first.Timestamp)
	}
	if first.CaptureLength != len(first.Data) {
		t.Errorf("Capture length %d does not match data length %d", first.CaptureLength, len(first.Data))
	}

	count := 1 + readAll(t, reader)
	if count != len(packets) {
		t.Errorf("Expected to read %d frames, but got %d", len(packets), count)
	}
	if reader.Truncated() {
		t.Errorf("Complete capture reported as truncated")
	}
	// Exhausted readers keep returning EOF.
	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF after end, got %v", err)
	}
}

func TestReader_NotFound(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.pcap"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected the fs error to stay wrapped, got %v", err)
	}
}

func TestReader_Corrupt(t *testing.T) {
	dir := t.TempDir()
	tests := map[string][]byte{
		"empty":     {},
		"bad magic": []byte("this is not a capture file at all"),
		"short":     {0xd4, 0xc3, 0xb2, 0xa1, 0x02, 0x00},
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".pcap")
			if err := os.WriteFile(path, content, 0644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			_, err := NewReader(path)
			if !errors.Is(err, ErrCorruptCapture) {
				t.Errorf("Expected ErrCorruptCapture, got %v", err)
			}
		})
	}
}

func TestReader_DamagedTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "damaged.pcap")
	pcaptest.WriteFile(t, path, pcaptest.Session(2, 100, time.Millisecond))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to reopen file: %v", err)
	}
	// half a record header
	if _, err := f.Write([]byte{1, 2, 3, 4, 5, 6, 7}); err != nil {
		t.Fatalf("Failed to append garbage: %v", err)
	}
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()

	if got := readAll(t, reader); got != 6 {
		t.Errorf("Expected 6 intact frames, got %d", got)
	}
	if !reader.Truncated() {
		t.Errorf("Expected reader to report truncation")
	}
}

func TestReader_PcapNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcapng")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("Failed to create ng writer: %v", err)
	}
	packets := pcaptest.Session(3, 100, time.Millisecond)
	for _, p := range packets {
		data := pcaptest.Frame(t, p)
		ci := gopacket.CaptureInfo{Timestamp: p.Time, CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("Failed to write packet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to open pcapng: %v", err)
	}
	defer reader.Close()
	if got := readAll(t, reader); got != len(packets) {
		t.Errorf("Expected %d frames, got %d", len(packets), got)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("whatever.pcap", "does-not-exist")
	if err == nil {
		t.Fatalf("Expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), DefaultBackend) {
		t.Errorf("Expected the available backends to be listed, got %v", err)
	}
}

func TestReader_Digest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	pcaptest.WriteFile(t, path, pcaptest.Session(50, 1000, time.Millisecond))

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()
	readAll(t, reader)

	got, err := reader.Digest()
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if want := wantDigest(t, path); got != want {
		t.Errorf("Expected digest %s, got %s", want, got)
	}
}

func TestReader_DigestCoversUnreadBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	pcaptest.WriteFile(t, path, pcaptest.Session(50, 1000, time.Millisecond))
	want := wantDigest(t, path)

	// stop after one frame, the rest of the file still counts
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	defer reader.Close()
	if _, err := reader.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	got, err := reader.Digest()
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected digest %s, got %s", want, got)
	}
}
