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

//go:generate mockgen -source=conn.go -destination=conn_mock.go -package=probe

import (
	"context"
	"net"

	"github.com/uptimecheck/ntpprobe/dscp"
)

// network is fixed to IPv4, same as the rest of the monitor
const network = "udp4"

// Conn is what we expect from a connected UDP socket
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// DialFunc opens a socket to the target. It is where hostname gets resolved.
type DialFunc func(ctx context.Context, t Target) (Conn, error)

// DialUDP connects UDP socket to the target.
// Connected socket is required to get ICMP errors back as read errors.
func DialUDP(ctx context.Context, t Target) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, t.Address())
	if err != nil {
		return nil, err
	}
	if t.DSCP > 0 {
		raddr := conn.RemoteAddr().(*net.UDPAddr)
		if err := dscp.Enable(conn, raddr.IP, t.DSCP); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}
