// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package udp

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// DSCPExpedited is the expedited forwarding code point, commonly used for real-time game traffic.
const DSCPExpedited = 46

var ErrInvalidDSCP = errors.New("invalid DSCP value")

// SetDSCP marks all packets sent through the connection with the differentiated services code point.
// Zero leaves the connection unmarked. A connection bound to the unspecified address is dual stack,
// so both the IPv4 TOS and the IPv6 traffic class are set, and an error is returned only if both fail.
func SetDSCP(conn *net.UDPConn, dscp int) error {
	if dscp == 0 {
		return nil
	}
	if dscp < 0 || dscp > 63 {
		return fmt.Errorf("udp: %w: %d", ErrInvalidDSCP, dscp)
	}

	tos := dscp << 2

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil && !addr.IP.IsUnspecified() {
		var err error
		if addr.IP.To4() != nil {
			err = ipv4.NewConn(conn).SetTOS(tos)
		} else {
			err = ipv6.NewConn(conn).SetTrafficClass(tos)
		}
		if err != nil {
			return fmt.Errorf("udp: failed to set DSCP: %w", err)
		}
		return nil
	}

	errV4 := ipv4.NewConn(conn).SetTOS(tos)
	errV6 := ipv6.NewConn(conn).SetTrafficClass(tos)
	if errV4 != nil && errV6 != nil {
		return fmt.Errorf("udp: failed to set DSCP: %w", errors.Join(errV4, errV6))
	}

	return nil
}

// DSCP returns the code point currently set on the connection.
func DSCP(conn *net.UDPConn) (int, error) {
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil && addr.IP.To4() == nil {
		tc, err := ipv6.NewConn(conn).TrafficClass()
		if err != nil {
			return 0, fmt.Errorf("udp: failed to get DSCP: %w", err)
		}
		return tc >> 2, nil
	}

	tos, err := ipv4.NewConn(conn).TOS()
	if err != nil {
		return 0, fmt.Errorf("udp: failed to get DSCP: %w", err)
	}

	return tos >> 2, nil
}
