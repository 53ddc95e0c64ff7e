package decision

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	tests := map[string]Action{
		"BENIGN":   Forward,
		"benign":   Forward,
		" Normal ": Forward,
		"DDoS":     Drop,
		"PortScan": Drop,
		"":         Drop,
	}
	for label, want := range tests {
		if got := Decide(label); got != want {
			t.Errorf("Decide(%q) = %s, want %s", label, got, want)
		}
	}
}

func TestSyslog(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)

	got := Syslog(Drop, "192.168.1.100", "10.0.0.5", Drop.Reason(), now)
	want := "<131> 1 2024-03-01T12:00:00.123456Z SENTRY-EDGE sdn-controller - - - [Security] Policy=DROP Src=192.168.1.100 Dst=10.0.0.5 Reason=AnomalyDetected"
	if got != want {
		t.Errorf("Unexpected syslog line:\n got  %s\n want %s", got, want)
	}

	got = Syslog(Forward, "a", "b", Forward.Reason(), now)
	if got[:5] != "<134>" {
		t.Errorf("Expected FORWARD at priority 134, got %s", got)
	}
}
