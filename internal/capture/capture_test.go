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

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesValueAndText(t *testing.T) {
	out := Run(context.Background(), func(ctx context.Context) (int, error) {
		fmt.Fprint(Stdout(ctx), "hello")
		fmt.Fprint(Stderr(ctx), "warn")
		return 42, nil
	})

	require.NoError(t, out.Err)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, "hello", out.Stdout)
	assert.Equal(t, "warn", out.Stderr)
}

func TestRunRestoresSinksAfterReturn(t *testing.T) {
	var parentOut, parentErr bytes.Buffer
	ctx := WithSinks(context.Background(), Sinks{Stdout: &parentOut, Stderr: &parentErr})

	out := Run(ctx, func(ctx context.Context) (string, error) {
		fmt.Fprint(Stdout(ctx), "inner")
		return "ok", nil
	})

	require.NoError(t, out.Err)
	assert.Same(t, &parentOut, Stdout(ctx))
	assert.Same(t, &parentErr, Stderr(ctx))
	assert.Empty(t, parentOut.String(), "captured text leaked into parent sink")

	fmt.Fprint(Stdout(ctx), "after")
	assert.Equal(t, "after", parentOut.String())
}

func TestRunRestoresSinksAfterFault(t *testing.T) {
	var parentOut bytes.Buffer
	ctx := WithSinks(context.Background(), Sinks{Stdout: &parentOut})
	boom := errors.New("boom")

	out := Run(ctx, func(ctx context.Context) (string, error) {
		fmt.Fprint(Stdout(ctx), "partial")
		return "", boom
	})

	require.ErrorIs(t, out.Err, boom)
	assert.Equal(t, "partial", out.Stdout)
	assert.Same(t, &parentOut, Stdout(ctx))
	assert.Empty(t, parentOut.String())
}

func TestRunRecoversPanic(t *testing.T) {
	var parentOut bytes.Buffer
	ctx := WithSinks(context.Background(), Sinks{Stdout: &parentOut})

	out := Run(ctx, func(ctx context.Context) (string, error) {
		fmt.Fprint(Stdout(ctx), "before panic")
		panic("kaboom")
	})

	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "kaboom")
	assert.Equal(t, "before panic", out.Stdout)
	assert.Same(t, &parentOut, Stdout(ctx))
}

func TestRunIsolatesConcurrentInvocations(t *testing.T) {
	const workers = 32
	results := make([]Output[string], workers)

	var ready sync.WaitGroup
	ready.Add(workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("token-%d", i)
			results[i] = Run(context.Background(), func(ctx context.Context) (string, error) {
				ready.Done()
				<-start
				for j := 0; j < 50; j++ {
					fmt.Fprint(Stdout(ctx), token)
				}
				return token, nil
			})
		}(i)
	}
	ready.Wait()
	close(start)
	wg.Wait()

	for i, out := range results {
		token := fmt.Sprintf("token-%d", i)
		require.NoError(t, out.Err)
		assert.Equal(t, token, out.Value)
		assert.Equal(t, bytes.Repeat([]byte(token), 50), []byte(out.Stdout), "invocation %d saw foreign output", i)
	}
}

func TestWithSinksKeepsUnsetWriter(t *testing.T) {
	var outer, inner bytes.Buffer
	ctx := WithSinks(context.Background(), Sinks{Stdout: &outer, Stderr: &outer})
	ctx = WithSinks(ctx, Sinks{Stdout: &inner})

	assert.Same(t, &inner, Stdout(ctx))
	assert.Same(t, &outer, Stderr(ctx))
}

func TestSetDefault(t *testing.T) {
	original := Default()
	t.Cleanup(func() { SetDefault(original) })

	var buf bytes.Buffer
	SetDefault(Sinks{Stdout: &buf})

	assert.Same(t, &buf, Stdout(context.Background()))
	assert.Equal(t, original.Stderr, Stderr(context.Background()))
}

func TestCapturedAccessor(t *testing.T) {
	out := Output[int]{Value: 7, Stdout: "o", Stderr: "e"}
	value, stdout, stderr := out.Captured()
	assert.Equal(t, 7, value)
	assert.Equal(t, "o", stdout)
	assert.Equal(t, "e", stderr)
}
