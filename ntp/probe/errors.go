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

	"golang.org/x/sys/unix"
)

// ErrorKind classifies why a check failed
type ErrorKind int

// Kinds of failed checks. All of them are terminal: probe never retries.
const (
	// NoError is the kind of a successful check
	NoError ErrorKind = iota
	// SendError means the request could not be sent
	SendError
	// TimeoutError means no reply arrived in time
	TimeoutError
	// TransportError means socket failed after the request was sent
	TransportError
	// ParseError means the reply is not a valid NTP packet
	ParseError
	// StratumMismatchError means server replied with unexpected stratum
	StratumMismatchError
)

var kindToString = map[ErrorKind]string{
	NoError:              "OK",
	SendError:            "SendError",
	TimeoutError:         "TimeoutError",
	TransportError:       "TransportError",
	ParseError:           "ParseError",
	StratumMismatchError: "StratumMismatchError",
}

var kindToPrefix = map[ErrorKind]string{
	SendError:            "Send Failed",
	TimeoutError:         "NTP Timeout",
	TransportError:       "UDP Communication Error",
	ParseError:           "Packet Parse Error",
	StratumMismatchError: "Stratum mismatch",
}

func (k ErrorKind) String() string {
	if s, ok := kindToString[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ErrNoResponse is wrapped into TimeoutError when the deadline passes
var ErrNoResponse = errors.New("no response from server")

// Error is returned by a failed check. Its message is meant to be shown to humans as is.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", kindToPrefix[e.Kind], e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns kind of the check error. Errors not produced by the probe count as transport errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return NoError
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return TransportError
}

// StratumMismatch carries both sides of a failed stratum expectation
type StratumMismatch struct {
	Expected int
	Got      int
}

func (s *StratumMismatch) Error() string {
	return fmt.Sprintf("expected %d, but got %d", s.Expected, s.Got)
}

func timeoutError(ctxErr error) *Error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &Error{Kind: TimeoutError, Err: ErrNoResponse}
	}
	return &Error{Kind: TimeoutError, Err: fmt.Errorf("check cancelled: %w", ctxErr)}
}

// describe adds a readable reason to the common socket errors
func describe(err error) error {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return fmt.Errorf("port unreachable: %w", err)
	case errors.Is(err, unix.EHOSTUNREACH):
		return fmt.Errorf("host unreachable: %w", err)
	case errors.Is(err, unix.ENETUNREACH):
		return fmt.Errorf("network unreachable: %w", err)
	}
	return err
}
