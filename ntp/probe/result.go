/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package probe

import (
	"fmt"
	"time"

	"github.com/uptimecheck/ntpprobe/ntp/protocol"
)

// Status is the health state of a target
type Status int

// possible check results
const (
	StatusDown Status = iota
	StatusUp
)

func (s Status) String() string {
	if s == StatusUp {
		return "up"
	}
	return "down"
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reply holds the fields decoded from the server response
type Reply struct {
	Stratum    uint8     `json:"stratum"`
	Leap       uint8     `json:"leap"`
	Version    uint8     `json:"version"`
	ServerTime time.Time `json:"server_time"`
}

func newReply(p *protocol.Packet) *Reply {
	return &Reply{
		Stratum:    p.Stratum,
		Leap:       p.Leap(),
		Version:    p.Version(),
		ServerTime: p.TransmitTime(),
	}
}

// Result is the outcome of a single check.
// Latency is only set when the target is up.
// Reply is set whenever a full NTP header was received, even if the check failed on stratum.
type Result struct {
	Target    string        `json:"target"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Latency   time.Duration `json:"latency_ns,omitempty"`
	Kind      ErrorKind     `json:"error_kind,omitempty"`
	Reply     *Reply        `json:"reply,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Up returns true if the check passed
func (r *Result) Up() bool {
	return r.Status == StatusUp
}

// record overwrites the whole result with the outcome of one check
func (r *Result) record(t Target, checkedAt time.Time, rtt time.Duration, reply *Reply, err error) {
	*r = Result{
		Target:    t.String(),
		Reply:     reply,
		CheckedAt: checkedAt,
	}
	if err != nil {
		r.Status = StatusDown
		r.Kind = KindOf(err)
		r.Message = err.Error()
		return
	}
	r.Status = StatusUp
	r.Latency = rtt
	r.Message = fmt.Sprintf("OK - Stratum: %d, RTT: %dms, ServerTime: %s",
		reply.Stratum, rtt.Milliseconds(), reply.ServerTime.Format(time.RFC3339))
}
