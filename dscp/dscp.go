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

/*
Package dscp marks outgoing probe packets with a DSCP value.
*/
package dscp

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Max is the largest value DSCP field can hold
const Max = 63

// Enable sets DSCP on the connection. ip selects between IPv4 TOS and IPv6 traffic class.
func Enable(conn net.Conn, ip net.IP, dscp int) error {
	if dscp < 0 || dscp > Max {
		return fmt.Errorf("dscp %d is out of range 0-%d", dscp, Max)
	}
	// DSCP is the upper 6 bits of the TOS byte
	tos := dscp << 2
	if ip.To4() == nil {
		if err := ipv6.NewConn(conn).SetTrafficClass(tos); err != nil {
			return fmt.Errorf("setting DSCP on ipv6 socket: %w", err)
		}
		return nil
	}
	if err := ipv4.NewConn(conn).SetTOS(tos); err != nil {
		return fmt.Errorf("setting DSCP on ipv4 socket: %w", err)
	}
	return nil
}
