// Package decision turns a classifier label into an edge forwarding action.
package decision

import (
	"fmt"
	"strings"
	"time"
)

// Action is the forwarding policy applied to a flow.
type Action string

const (
	Forward Action = "FORWARD"
	Drop    Action = "DROP"
)

// Reasons reported alongside an action.
const (
	ReasonAllowed = "TrafficAllowed"
	ReasonAnomaly = "AnomalyDetected"
)

// Decide forwards benign traffic and drops everything else.
func Decide(label string) Action {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "BENIGN", "NORMAL":
		return Forward
	default:
		return Drop
	}
}

// Reason returns the reason string that goes with an action.
func (a Action) Reason() string {
	if a == Forward {
		return ReasonAllowed
	}
	return ReasonAnomaly
}

// Syslog renders an RFC 5424 style line for the action. DROP is logged at priority
// 131 (local0.err), FORWARD at 134 (local0.info).
func Syslog(action Action, src, dst, reason string, now time.Time) string {
	priority := "<134>"
	if action == Drop {
		priority = "<131>"
	}
	return fmt.Sprintf("%s 1 %s SENTRY-EDGE sdn-controller - - - [Security] Policy=%s Src=%s Dst=%s Reason=%s",
		priority, now.UTC().Format("2006-01-02T15:04:05.000000Z"), action, src, dst, reason)
}
