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
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolbridge/internal/tools"
)

type pipeClient struct {
	t    *testing.T
	in   *io.PipeWriter
	out  *bufio.Reader
	done chan error
}

func startPipeServer(t *testing.T, s *Server) *pipeClient {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	c := &pipeClient{t: t, in: inW, out: bufio.NewReader(outR), done: make(chan error, 1)}
	go func() {
		err := s.Serve(context.Background(), inR, outW)
		outW.Close()
		c.done <- err
	}()
	return c
}

func (c *pipeClient) send(msg string) {
	c.t.Helper()
	_, err := io.WriteString(c.in, msg+"\n")
	require.NoError(c.t, err)
}

func (c *pipeClient) receive() map[string]interface{} {
	c.t.Helper()
	type reply struct {
		line []byte
		err  error
	}
	got := make(chan reply, 1)
	go func() {
		line, err := c.out.ReadBytes('\n')
		got <- reply{line, err}
	}()
	select {
	case r := <-got:
		require.NoError(c.t, r.err)
		var msg map[string]interface{}
		require.NoError(c.t, json.Unmarshal(r.line, &msg))
		return msg
	case <-time.After(5 * time.Second):
		c.t.Fatal("no response within 5s")
		return nil
	}
}

func newBlockingServer(t *testing.T, release <-chan struct{}) *Server {
	t.Helper()
	bridge := tools.NewBridge(tools.BridgeOptions{Logger: zerolog.Nop()})
	registry, err := tools.NewDefaultRegistry(bridge, zerolog.Nop(), tools.BuiltinOptions{})
	require.NoError(t, err)
	require.NoError(t, registry.Register(tools.Descriptor{
		Name:        "block",
		Description: "waits until released",
		InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	}, tools.HandlerFunc(func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		<-release
		return "released", nil
	})))
	t.Cleanup(bridge.Wait)
	return New("toolbridge-test", "0.0.0", registry, zerolog.Nop())
}

func TestServeAnswersWhileToolCallIsPending(t *testing.T) {
	release := make(chan struct{})
	c := startPipeServer(t, newBlockingServer(t, release))

	c.send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)
	initialized := c.receive()
	assert.EqualValues(t, 1, initialized["id"])

	c.send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"block","arguments":{}}}`)
	c.send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"greet","arguments":{"name":"Ada"}}}`)
	c.send(`{"jsonrpc":"2.0","id":4,"method":"tools/list"}`)

	seen := map[float64]map[string]interface{}{}
	for len(seen) < 2 {
		msg := c.receive()
		seen[msg["id"].(float64)] = msg
	}
	require.Contains(t, seen, float64(3))
	require.Contains(t, seen, float64(4))

	greet := seen[3]["result"].(map[string]interface{})
	content := greet["content"].([]interface{})
	assert.Equal(t, "Hello, Ada!", content[0].(map[string]interface{})["text"])

	close(release)
	blocked := c.receive()
	assert.EqualValues(t, 2, blocked["id"])
	result := blocked["result"].(map[string]interface{})
	assert.Equal(t, "released", result["content"].([]interface{})[0].(map[string]interface{})["text"])

	require.NoError(t, c.in.Close())
	select {
	case err := <-c.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after input closed")
	}
}

func TestServeFinishesPendingCallsOnEOF(t *testing.T) {
	release := make(chan struct{})
	c := startPipeServer(t, newBlockingServer(t, release))

	c.send(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"block","arguments":{}}}`)
	require.NoError(t, c.in.Close())
	close(release)

	msg := c.receive()
	assert.EqualValues(t, 7, msg["id"])
	select {
	case err := <-c.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after input closed")
	}
}

func TestServeAnswersMalformedInput(t *testing.T) {
	c := startPipeServer(t, newTestServer(t))
	c.send(`{not json`)
	msg := c.receive()
	assert.Contains(t, msg, "error")
	require.NoError(t, c.in.Close())
	assert.NoError(t, <-c.done)
}
