/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package remote implements the show-control TCP channel: one short-lived
// connection per command, no framing, no response. Lighting desks and cue
// software send a bare command string and disconnect.
package remote

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBind is the loopback address show-control gear connects to.
const DefaultBind = "127.0.0.1:5556"

// maxCommandBytes bounds a single command read. Real commands are a few
// dozen bytes; anything larger is garbage.
const maxCommandBytes = 1024

// readTimeout caps how long a connected client may dawdle before sending
// its command.
const readTimeout = 5 * time.Second

// Listener accepts command connections and dispatches each command string,
// whitespace-trimmed and matched exactly, to its registered handler.
type Listener struct {
	bind   string
	logger zerolog.Logger

	mu       sync.Mutex
	handlers map[string]func()
	ln       net.Listener
	closed   bool

	wg sync.WaitGroup
}

// NewListener creates a listener for the given bind address. An empty
// address falls back to DefaultBind.
func NewListener(bind string, logger zerolog.Logger) *Listener {
	if bind == "" {
		bind = DefaultBind
	}
	return &Listener{
		bind:     bind,
		logger:   logger.With().Str("component", "remote").Logger(),
		handlers: make(map[string]func()),
	}
}

// Register installs the handler for a command. Registering the same command
// again replaces the previous handler. Must be called before Start.
func (l *Listener) Register(command string, handler func()) {
	l.mu.Lock()
	l.handlers[command] = handler
	l.mu.Unlock()
}

// Start binds the TCP socket and begins accepting connections on a
// background goroutine. The bind itself is synchronous so a taken port
// surfaces to the caller immediately.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.ln != nil {
		l.mu.Unlock()
		return errors.New("remote listener already started")
	}
	ln, err := net.Listen("tcp", l.bind)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("remote listen on %s: %w", l.bind, err)
	}
	l.ln = ln
	l.closed = false
	l.mu.Unlock()

	l.logger.Info().Str("addr", ln.Addr().String()).Msg("remote command listener started")

	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, useful when the listener was started on
// port zero. Empty before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Close stops accepting connections and waits for in-flight handlers.
// Idempotent.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed || l.ln == nil {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	ln := l.ln
	l.mu.Unlock()

	err := ln.Close()
	l.wg.Wait()
	l.logger.Info().Msg("remote command listener stopped")
	return err
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn().Err(err).Msg("remote accept error")
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(conn)
		}()
	}
}

// handleConn reads one command from the connection and dispatches it. The
// protocol is a single read: clients send their command and hang up, so one
// segment carries the whole payload.
func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	buf := make([]byte, maxCommandBytes)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		l.logger.Warn().Err(err).Str("remote_addr", conn.RemoteAddr().String()).Msg("remote read error")
		return
	}

	command := strings.TrimSpace(string(buf[:n]))
	if command == "" {
		return
	}

	l.mu.Lock()
	handler := l.handlers[command]
	l.mu.Unlock()

	if handler == nil {
		l.logger.Warn().
			Str("command", command).
			Str("remote_addr", conn.RemoteAddr().String()).
			Msg("unknown remote command")
		return
	}

	l.logger.Info().
		Str("command", command).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("remote command received")

	// Handlers run external logic on this connection's goroutine; a panic
	// must not kill the accept loop's siblings.
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Str("command", command).Msg("remote handler panicked")
		}
	}()
	handler()
}
