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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uptimecheck/ntpprobe/ntp/protocol"
)

var checkedAt = time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)

func TestResultRecordSuccess(t *testing.T) {
	reply := &Reply{Stratum: 2, Version: 4, ServerTime: protocol.UnixSeconds(3913056000)}
	res := &Result{Message: "stale", Kind: ParseError}
	res.record(Target{Host: "127.0.0.1", Port: 123}, checkedAt, 23*time.Millisecond+400*time.Microsecond, reply, nil)

	require.True(t, res.Up())
	require.Equal(t, StatusUp, res.Status)
	require.Equal(t, NoError, res.Kind)
	require.Equal(t, "127.0.0.1:123", res.Target)
	require.Equal(t, 23*time.Millisecond+400*time.Microsecond, res.Latency)
	require.Equal(t, "OK - Stratum: 2, RTT: 23ms, ServerTime: 2024-01-01T00:00:00Z", res.Message)
	require.Equal(t, checkedAt, res.CheckedAt)
}

func TestResultRecordFailure(t *testing.T) {
	reply := &Reply{Stratum: 16}
	err := &Error{Kind: StratumMismatchError, Err: &StratumMismatch{Expected: 1, Got: 16}}
	res := &Result{Latency: time.Second}
	res.record(Target{Name: "lab", Host: "127.0.0.1", Port: 123}, checkedAt, 5*time.Millisecond, reply, err)

	require.False(t, res.Up())
	require.Equal(t, StatusDown, res.Status)
	require.Equal(t, StratumMismatchError, res.Kind)
	require.Equal(t, "lab", res.Target)
	require.Equal(t, time.Duration(0), res.Latency)
	require.Equal(t, "Stratum mismatch: expected 1, but got 16", res.Message)
	require.Equal(t, reply, res.Reply)

	res.record(Target{Host: "127.0.0.1", Port: 123}, checkedAt, 0, nil, errors.New("foreign"))
	require.Equal(t, TransportError, res.Kind)
	require.Nil(t, res.Reply)
}

func TestResultJSON(t *testing.T) {
	res := &Result{}
	res.record(Target{Host: "127.0.0.1", Port: 123}, checkedAt, 0, nil, timeoutError(context.DeadlineExceeded))
	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"target": "127.0.0.1:123",
		"status": "down",
		"message": "NTP Timeout: no response from server",
		"error_kind": "TimeoutError",
		"checked_at": "2024-01-01T00:00:01Z"
	}`, string(b))

	reply := &Reply{Stratum: 1, Version: 3, ServerTime: protocol.UnixSeconds(3913056000)}
	res.record(Target{Host: "127.0.0.1", Port: 123}, checkedAt, 2*time.Millisecond, reply, nil)
	b, err = json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"target": "127.0.0.1:123",
		"status": "up",
		"message": "OK - Stratum: 1, RTT: 2ms, ServerTime: 2024-01-01T00:00:00Z",
		"latency_ns": 2000000,
		"reply": {"stratum": 1, "leap": 0, "version": 3, "server_time": "2024-01-01T00:00:00Z"},
		"checked_at": "2024-01-01T00:00:01Z"
	}`, string(b))
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "up", StatusUp.String())
	require.Equal(t, "down", StatusDown.String())
}
