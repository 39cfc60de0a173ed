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
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/uptimecheck/ntpprobe/ntp/probe/probetest"
	"github.com/uptimecheck/ntpprobe/ntp/protocol"
)

func startServer(t *testing.T, s *probetest.Server) *probetest.Server {
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Close() })
	return s
}

func serverTarget(s *probetest.Server) Target {
	return Target{Host: s.Host(), Port: s.Port(), Timeout: 2 * time.Second}
}

func TestCheckSuccess(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 2, TxTimeSec: 3913056000})
	p := New(nil)
	res := &Result{}

	err := p.Check(context.Background(), serverTarget(s), res)
	require.NoError(t, err)
	require.True(t, res.Up())
	require.Equal(t, NoError, res.Kind)
	require.Greater(t, res.Latency, time.Duration(0))
	require.Less(t, res.Latency, 2*time.Second)
	require.NotNil(t, res.Reply)
	require.Equal(t, uint8(2), res.Reply.Stratum)
	require.Equal(t, uint8(3), res.Reply.Version)
	require.Equal(t, uint8(0), res.Reply.Leap)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), res.Reply.ServerTime)
	require.Regexp(t, `^OK - Stratum: 2, RTT: \d+ms, ServerTime: 2024-01-01T00:00:00Z$`, res.Message)
	require.Equal(t, 1, s.Requests())
}

func TestCheckRequestBytes(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 1})
	res := &Result{}
	require.NoError(t, New(nil).Check(context.Background(), serverTarget(s), res))

	want := make([]byte, protocol.PacketSizeBytes)
	want[0] = 0x1B
	require.Equal(t, want, s.LastRequest())
}

func TestCheckExpectedStratum(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 1})
	target := serverTarget(s)
	target.ExpectedStratum = Stratum(1)
	res := &Result{}
	require.NoError(t, New(nil).Check(context.Background(), target, res))
	require.True(t, res.Up())
	require.Contains(t, res.Message, "Stratum: 1")
}

func TestCheckStratumMismatch(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 3})
	target := serverTarget(s)
	target.ExpectedStratum = Stratum(1)
	res := &Result{}

	err := New(nil).Check(context.Background(), target, res)
	require.Error(t, err)
	require.Equal(t, StratumMismatchError, KindOf(err))
	require.Equal(t, "Stratum mismatch: expected 1, but got 3", err.Error())
	require.False(t, res.Up())
	require.Equal(t, err.Error(), res.Message)
	require.Equal(t, time.Duration(0), res.Latency)
	require.Equal(t, uint8(3), res.Reply.Stratum)
}

func TestCheckShortReply(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 1, ReplyLength: 20})
	res := &Result{}

	err := New(nil).Check(context.Background(), serverTarget(s), res)
	require.Error(t, err)
	require.Equal(t, ParseError, KindOf(err))
	require.ErrorIs(t, err, protocol.ErrShortPacket)
	require.Contains(t, res.Message, "Packet Parse Error")
	require.False(t, res.Up())
	require.Nil(t, res.Reply)
}

func TestCheckTimeout(t *testing.T) {
	s := startServer(t, &probetest.Server{Silent: true})
	target := serverTarget(s)
	target.Timeout = 200 * time.Millisecond
	res := &Result{}

	start := time.Now()
	err := New(nil).Check(context.Background(), target, res)
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Equal(t, TimeoutError, KindOf(err))
	require.ErrorIs(t, err, ErrNoResponse)
	require.Equal(t, "NTP Timeout: no response from server", res.Message)
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.Less(t, elapsed, time.Second)
	require.Equal(t, 1, s.Requests())
}

func TestCheckReplyAfterTimeout(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 1, Delay: 300 * time.Millisecond})
	target := serverTarget(s)
	target.Timeout = 100 * time.Millisecond
	res := &Result{}

	err := New(nil).Check(context.Background(), target, res)
	require.Equal(t, TimeoutError, KindOf(err))
	// late reply must not change the outcome
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, StatusDown, res.Status)
	require.Equal(t, TimeoutError, res.Kind)
}

func TestCheckCancelled(t *testing.T) {
	s := startServer(t, &probetest.Server{Silent: true})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	res := &Result{}

	start := time.Now()
	err := New(nil).Check(ctx, serverTarget(s), res)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, TimeoutError, KindOf(err))
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, res.Message, "check cancelled")
}

func TestCheckPortUnreachable(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ICMP errors on connected UDP sockets are only reliable on linux")
	}
	// grab a free port and release it so nothing listens there
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())

	res := &Result{}
	err = New(nil).Check(context.Background(), Target{Host: "127.0.0.1", Port: port, Timeout: 2 * time.Second}, res)
	require.Error(t, err)
	require.Equal(t, TransportError, KindOf(err))
	require.ErrorIs(t, err, unix.ECONNREFUSED)
	require.Contains(t, res.Message, "UDP Communication Error: port unreachable")
}

func TestCheckUnresolvableHost(t *testing.T) {
	res := &Result{}
	err := New(nil).Check(context.Background(), Target{Host: "ntp.does-not-exist.invalid", Timeout: 5 * time.Second}, res)
	require.Error(t, err)
	require.Equal(t, SendError, KindOf(err))
	require.Contains(t, res.Message, "Send Failed")
	require.Equal(t, "ntp.does-not-exist.invalid:123", res.Target)
}

func TestCheckInvalidTarget(t *testing.T) {
	res := &Result{}
	err := New(nil).Check(context.Background(), Target{}, res)
	require.Error(t, err)
	require.Equal(t, SendError, KindOf(err))
	require.Equal(t, "Send Failed: invalid target: host must be specified", res.Message)
}

func TestCheckConcurrentUse(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 2})
	p := New(nil)
	targets := make([]Target, 20)
	for i := range targets {
		targets[i] = serverTarget(s)
	}
	results := p.CheckAll(context.Background(), targets, 5)
	require.Len(t, results, 20)
	require.Equal(t, 20, CountUp(results))
	require.Equal(t, 20, s.Requests())
}

func TestProberName(t *testing.T) {
	require.Equal(t, "ntp", New(nil).Name())
}

func TestCheckWithDSCP(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 1})
	target := serverTarget(s)
	target.DSCP = 46
	res := &Result{}
	require.NoError(t, New(nil).Check(context.Background(), target, res))
	require.True(t, res.Up())
}

func TestCheckSlowDialCountsAgainstTimeout(t *testing.T) {
	s := startServer(t, &probetest.Server{Stratum: 2, Delay: 150 * time.Millisecond})
	p := New(nil)
	p.Dial = func(ctx context.Context, target Target) (Conn, error) {
		time.Sleep(180 * time.Millisecond)
		return DialUDP(ctx, target)
	}
	target := serverTarget(s)
	target.Timeout = 200 * time.Millisecond
	res := &Result{}

	start := time.Now()
	err := p.Check(context.Background(), target, res)
	elapsed := time.Since(start)

	require.Equal(t, TimeoutError, KindOf(err))
	require.ErrorIs(t, err, ErrNoResponse)
	require.False(t, res.Up())
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.Less(t, elapsed, 400*time.Millisecond)
}
