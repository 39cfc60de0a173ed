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
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "OK", NoError.String())
	require.Equal(t, "SendError", SendError.String())
	require.Equal(t, "TimeoutError", TimeoutError.String())
	require.Equal(t, "TransportError", TransportError.String())
	require.Equal(t, "ParseError", ParseError.String())
	require.Equal(t, "StratumMismatchError", StratumMismatchError.String())
	require.Equal(t, "ErrorKind(42)", ErrorKind(42).String())

	b, err := ParseError.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "ParseError", string(b))
}

func TestErrorMessages(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{timeoutError(context.DeadlineExceeded), "NTP Timeout: no response from server"},
		{timeoutError(context.Canceled), "NTP Timeout: check cancelled: context canceled"},
		{&Error{Kind: SendError, Err: errors.New("boom")}, "Send Failed: boom"},
		{&Error{Kind: TransportError, Err: errors.New("boom")}, "UDP Communication Error: boom"},
		{&Error{Kind: ParseError, Err: errors.New("boom")}, "Packet Parse Error: boom"},
		{
			&Error{Kind: StratumMismatchError, Err: &StratumMismatch{Expected: 1, Got: 2}},
			"Stratum mismatch: expected 1, but got 2",
		},
	}
	for _, tc := range testCases {
		require.EqualError(t, tc.err, tc.want)
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, NoError, KindOf(nil))
	require.Equal(t, TransportError, KindOf(errors.New("whatever")))

	err := fmt.Errorf("wrapped: %w", &Error{Kind: ParseError, Err: errors.New("short")})
	require.Equal(t, ParseError, KindOf(err))

	terr := timeoutError(context.DeadlineExceeded)
	require.ErrorIs(t, terr, ErrNoResponse)
	require.ErrorIs(t, timeoutError(context.Canceled), context.Canceled)

	var mismatch *StratumMismatch
	err = &Error{Kind: StratumMismatchError, Err: &StratumMismatch{Expected: 3, Got: 16}}
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 3, mismatch.Expected)
	require.Equal(t, 16, mismatch.Got)
}

func TestDescribe(t *testing.T) {
	refused := &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("read", unix.ECONNREFUSED)}
	err := describe(refused)
	require.ErrorIs(t, err, unix.ECONNREFUSED)
	require.Contains(t, err.Error(), "port unreachable: ")

	err = describe(&net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", unix.EHOSTUNREACH)})
	require.Contains(t, err.Error(), "host unreachable: ")

	err = describe(&net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", unix.ENETUNREACH)})
	require.Contains(t, err.Error(), "network unreachable: ")

	other := errors.New("something else")
	require.Equal(t, other, describe(other))
}
