/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package remote

import (
	"fmt"
	"net"
	"time"
)

// Send delivers one command to a running listener and disconnects. It is
// the client side of the one-shot protocol, used by the send subcommand and
// by external show-control scripts.
func Send(addr, command string) error {
	if addr == "" {
		addr = DefaultBind
	}
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte(command)); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	return nil
}
