// Package libpcap registers the cgo libpcap capture backend under the name "libpcap".
// Import it for its side effect when the system libpcap should read capture files.
package libpcap

import (
	"NetSentry/pkg/pcap"

	gopcap "github.com/google/gopacket/pcap"
)

// Name is the backend name used in configuration.
const Name = "libpcap"

func init() {
	pcap.RegisterBackend(Name, open)
}

func open(filePath string) (pcap.Source, func() error, error) {
	handle, err := gopcap.OpenOffline(filePath)
	if err != nil {
		return nil, nil, err
	}
	return handle, func() error {
		handle.Close()
		return nil
	}, nil
}
