package pcap

import (
	"NetSentry/internal/model"
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

var (
	// ErrNotFound is returned when the capture path does not exist.
	ErrNotFound = errors.New("capture file not found")
	// ErrCorruptCapture is returned when the global header cannot be read.
	ErrCorruptCapture = errors.New("corrupt capture file")
)

// DefaultBackend is the pure-Go reader, able to read pcap and pcapng files.
const DefaultBackend = "pcapgo"

// Source is the minimal packet source a backend must provide.
type Source interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// digester is implemented by sources that hash the file while it is read.
type digester interface {
	Digest() ([]byte, error)
}

// Opener opens a capture file with a specific backend.
type Opener func(path string) (Source, func() error, error)

// backends holds the mapping of backend names to their openers.
var backends = map[string]Opener{
	DefaultBackend: openPcapgo,
}

// RegisterBackend registers a new capture backend.
func RegisterBackend(name string, opener Opener) {
	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("capture backend '%s' already registered", name))
	}
	backends[name] = opener
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reader reads frames from a capture file. It is lazy and cannot be rewound:
// open the file again to replay it.
type Reader struct {
	path      string
	src       Source
	closeFn   func() error
	frames    int
	truncated bool
}

// NewReader creates a new capture reader for the given file path using the default backend.
func NewReader(filePath string) (*Reader, error) {
	return Open(filePath, DefaultBackend)
}

// Open creates a capture reader using the named backend.
func Open(filePath, backend string) (*Reader, error) {
	if backend == "" {
		backend = DefaultBackend
	}
	opener, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("unknown capture backend: '%s' (available: %s)", backend, strings.Join(Backends(), ", "))
	}

	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to stat capture file: %w", err)
	}

	src, closeFn, err := opener(filePath)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorruptCapture) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCapture, filePath, err)
	}
	return &Reader{path: filePath, src: src, closeFn: closeFn}, nil
}

// LinkType returns the link-layer type declared by the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// Truncated reports whether reading stopped early on a damaged record.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Next returns the next frame, or io.EOF at the end of the capture.
// A damaged record header cannot be skipped over, so it ends the capture early.
func (r *Reader) Next() (model.Frame, error) {
	if r.truncated {
		return model.Frame{}, io.EOF
	}
	data, ci, err := r.src.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return model.Frame{}, io.EOF
		}
		r.truncated = true
		log.WithFields(log.Fields{"capture": r.path, "frames": r.frames}).
			Warnf("Capture ends with a damaged record, stopping: %v", err)
		return model.Frame{}, io.EOF
	}
	r.frames++
	return model.Frame{
		Timestamp:      ci.Timestamp,
		Data:           data,
		CaptureLength:  ci.CaptureLength,
		OriginalLength: ci.Length,
	}, nil
}

// Digest returns the hex BLAKE3 digest of the whole capture file. The pcapgo backend
// hashes the bytes as they are read and only finishes whatever is left unread; other
// backends hash the file separately. Call it before Close.
func (r *Reader) Digest() (string, error) {
	if d, ok := r.src.(digester); ok {
		sum, err := d.Digest()
		if err != nil {
			return "", fmt.Errorf("failed to hash capture: %w", err)
		}
		return hex.EncodeToString(sum), nil
	}
	return fileDigest(r.path)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open capture for digest: %w", err)
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash capture: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Close closes the underlying capture.
func (r *Reader) Close() error {
	if r.closeFn == nil {
		return nil
	}
	err := r.closeFn()
	r.closeFn = nil
	return err
}

var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// openPcapgo opens classic pcap (both byte orders, micro and nano resolution) and pcapng files.
func openPcapgo(filePath string) (Source, func() error, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, nil, err
	}

	h := blake3.New()
	tee := io.TeeReader(f, h)
	br := bufio.NewReader(tee)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: header unreadable: %v", ErrCorruptCapture, filePath, err)
	}

	var src Source
	if bytes.Equal(magic, ngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptCapture, filePath, err)
	}
	return &hashingSource{Source: src, rest: tee, hash: h}, f.Close, nil
}

// hashingSource feeds every byte read from the file into a BLAKE3 hasher.
type hashingSource struct {
	Source
	rest io.Reader
	hash *blake3.Hasher
}

// Digest hashes the bytes the decoder never reached, e.g. after a damaged record.
func (s *hashingSource) Digest() ([]byte, error) {
	if _, err := io.Copy(io.Discard, s.rest); err != nil {
		return nil, err
	}
	return s.hash.Sum(nil), nil
}
