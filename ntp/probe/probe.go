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
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/uptimecheck/ntpprobe/ntp/protocol"
)

// Name is the monitor type this check implements
const Name = "ntp"

// maxDatagramSize is big enough for NTP header plus extension fields and MAC
const maxDatagramSize = 1024

type state int

const (
	stateIdle state = iota
	stateSent
	stateReceived
	stateTimedOut
	stateTransportFailed
	stateClosed
)

var stateToString = map[state]string{
	stateIdle:            "IDLE",
	stateSent:            "SENT",
	stateReceived:        "RECEIVED",
	stateTimedOut:        "TIMED_OUT",
	stateTransportFailed: "TRANSPORT_FAILED",
	stateClosed:          "CLOSED",
}

func (s state) String() string {
	return stateToString[s]
}

// Stats is notified about every finished check
type Stats interface {
	Observe(t Target, r *Result)
}

type noopStats struct{}

func (noopStats) Observe(Target, *Result) {}

// datagram is whatever the socket gave us first
type datagram struct {
	data []byte
	rx   time.Time
	err  error
}

// Prober runs NTP checks. It keeps no per-check state and is safe for concurrent use.
type Prober struct {
	Dial  DialFunc
	Stats Stats
}

// New returns Prober using real UDP sockets
func New(stats Stats) *Prober {
	if stats == nil {
		stats = noopStats{}
	}
	return &Prober{Dial: DialUDP, Stats: stats}
}

// Name returns the monitor type
func (p *Prober) Name() string {
	return Name
}

// Check sends one request to the target and waits for the first reply.
// Exactly one outcome is written into res. On failure the returned error is a *Error.
func (p *Prober) Check(ctx context.Context, target Target, res *Result) error {
	target = target.WithDefaults()
	checkedAt := time.Now()

	var reply *Reply
	rtt, packet, err := p.exchange(ctx, target)
	if err == nil {
		reply = newReply(packet)
		err = checkStratum(target, packet.Stratum)
	}
	res.record(target, checkedAt, rtt, reply, err)

	stats := p.Stats
	if stats == nil {
		stats = noopStats{}
	}
	stats.Observe(target, res)

	if err != nil {
		log.Debugf("%s: check failed: %v", target, err)
		return err
	}
	log.Debugf("%s: %s", target, res.Message)
	return nil
}

// exchange does the network round trip. Socket is closed before it returns, whatever the outcome.
func (p *Prober) exchange(ctx context.Context, target Target) (time.Duration, *protocol.Packet, error) {
	if err := target.Validate(); err != nil {
		return 0, nil, &Error{Kind: SendError, Err: fmt.Errorf("invalid target: %w", err)}
	}
	request, err := protocol.NewClientRequest().Bytes()
	if err != nil {
		return 0, nil, &Error{Kind: SendError, Err: err}
	}

	dial := p.Dial
	if dial == nil {
		dial = DialUDP
	}

	// one deadline covers resolve, send and receive
	ctx, cancel := context.WithTimeout(ctx, target.Timeout)
	defer cancel()

	conn, err := dial(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, timeoutError(ctx.Err())
		}
		return 0, nil, &Error{Kind: SendError, Err: describe(err)}
	}

	st := stateIdle
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debugf("%s: failed to close socket: %v", target, err)
		}
		log.Debugf("%s: %s -> %s", target, st, stateClosed)
	}()

	// dial may ignore ctx, so check the deadline before sending
	if err := ctx.Err(); err != nil {
		log.Debugf("%s: %s -> %s", target, st, stateTimedOut)
		st = stateTimedOut
		return 0, nil, timeoutError(err)
	}

	// RTT is measured from T0, right before the request goes out
	t0 := time.Now()
	if _, err := conn.Write(request); err != nil {
		return 0, nil, &Error{Kind: SendError, Err: describe(err)}
	}
	log.Debugf("%s: %s -> %s", target, st, stateSent)
	st = stateSent

	// buffer of 1 lets receive exit after a timeout: its late send never blocks
	responses := make(chan datagram, 1)
	go receive(conn, responses)

	select {
	case <-ctx.Done():
		log.Debugf("%s: %s -> %s", target, st, stateTimedOut)
		st = stateTimedOut
		return 0, nil, timeoutError(ctx.Err())
	case d := <-responses:
		if d.err != nil {
			log.Debugf("%s: %s -> %s", target, st, stateTransportFailed)
			st = stateTransportFailed
			return 0, nil, &Error{Kind: TransportError, Err: describe(d.err)}
		}
		log.Debugf("%s: %s -> %s", target, st, stateReceived)
		st = stateReceived
		rtt := d.rx.Sub(t0)
		packet, err := protocol.BytesToPacket(d.data)
		if err != nil {
			return rtt, nil, &Error{Kind: ParseError, Err: err}
		}
		if log.IsLevelEnabled(log.TraceLevel) {
			log.Tracef("%s: response %s", target, spew.Sdump(packet))
		}
		return rtt, packet, nil
	}
}

// receive reads the first datagram. Once socket is closed Read fails and the late result is dropped into the buffer.
// out must have room for one value, otherwise every timed out check leaks this goroutine.
func receive(conn Conn, out chan<- datagram) {
	buf := make([]byte, maxDatagramSize)
	n, err := conn.Read(buf)
	out <- datagram{data: buf[:n], rx: time.Now(), err: err}
}

func checkStratum(t Target, got uint8) error {
	if t.ExpectedStratum == nil || *t.ExpectedStratum == int(got) {
		return nil
	}
	return &Error{
		Kind: StratumMismatchError,
		Err:  &StratumMismatch{Expected: *t.ExpectedStratum, Got: int(got)},
	}
}
