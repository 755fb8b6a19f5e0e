// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// stdioSession is the one client session of a stdio connection.
type stdioSession struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool
}

func newStdioSession() *stdioSession {
	return &stdioSession{
		id:            "stdio-" + uuid.NewString(),
		notifications: make(chan mcp.JSONRPCNotification, 100),
	}
}

func (s *stdioSession) SessionID() string { return s.id }

func (s *stdioSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return s.notifications
}

func (s *stdioSession) Initialize() { s.initialized.Store(true) }

func (s *stdioSession) Initialized() bool { return s.initialized.Load() }

var _ server.ClientSession = (*stdioSession)(nil)

// stdioTransport reads newline-delimited JSON-RPC messages. tools/call
// requests are handled on their own goroutines and answered when they
// finish; every other message is answered in arrival order on the read
// loop. Writes to out are serialized.
type stdioTransport struct {
	mcp     *server.MCPServer
	logger  zerolog.Logger
	session *stdioSession

	mu  sync.Mutex
	out io.Writer

	calls sync.WaitGroup
}

type inputLine struct {
	data []byte
	err  error
}

func newStdioTransport(mcpServer *server.MCPServer, out io.Writer, logger zerolog.Logger) *stdioTransport {
	return &stdioTransport{
		mcp:     mcpServer,
		logger:  logger,
		session: newStdioSession(),
		out:     out,
	}
}

// run serves until in is exhausted or ctx is done. Tool calls still in
// flight are allowed to write their responses before run returns.
func (t *stdioTransport) run(ctx context.Context, in io.Reader) error {
	if err := t.mcp.RegisterSession(ctx, t.session); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	defer t.mcp.UnregisterSession(ctx, t.session.SessionID())
	ctx = t.mcp.WithContext(ctx, t.session)

	notifyCtx, stopNotify := context.WithCancel(ctx)
	defer stopNotify()
	go t.forwardNotifications(notifyCtx)

	lines := make(chan inputLine)
	go readLines(ctx, in, lines)

	defer t.calls.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line.err != nil {
				return line.err
			}
			t.dispatch(ctx, line.data)
		}
	}
}

func readLines(ctx context.Context, in io.Reader, lines chan<- inputLine) {
	defer close(lines)
	reader := bufio.NewReader(in)
	for {
		data, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) > 0 {
			select {
			case lines <- inputLine{data: data}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case lines <- inputLine{err: err}:
				case <-ctx.Done():
				}
			}
			return
		}
	}
}

func (t *stdioTransport) dispatch(ctx context.Context, line []byte) {
	var head struct {
		Method mcp.MCPMethod `json:"method"`
	}
	if err := json.Unmarshal(line, &head); err != nil || head.Method != mcp.MethodToolsCall {
		t.handle(ctx, line)
		return
	}
	t.calls.Add(1)
	go func() {
		defer t.calls.Done()
		t.handle(ctx, line)
	}()
}

func (t *stdioTransport) handle(ctx context.Context, line []byte) {
	if resp := t.mcp.HandleMessage(ctx, json.RawMessage(line)); resp != nil {
		t.write(resp)
	}
}

func (t *stdioTransport) forwardNotifications(ctx context.Context) {
	for {
		select {
		case n := <-t.session.notifications:
			t.write(n)
		case <-ctx.Done():
			return
		}
	}
}

func (t *stdioTransport) write(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to encode message")
		return
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.Write(data); err != nil {
		t.logger.Error().Err(err).Msg("failed to write message")
	}
}
