// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying io.WriteCloser (typically a
// rotating lumberjack.Logger) on a channel, so that a slow disk never blocks
// a caller sitting inside extend_lock or a frame lock. Once the buffer is
// full, writes are dropped rather than applying backpressure to the caller.
type AsyncLogger struct {
	target io.WriteCloser
	lines  chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewAsyncLogger starts a writer goroutine that drains lines from a buffer of
// the given capacity into target.
func NewAsyncLogger(target io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		target: target,
		lines:  make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for line := range a.lines {
		_, _ = a.target.Write(line)
	}
}

// Write implements io.Writer. p is copied before being queued since the
// caller's buffer is reused by fmt/slog immediately after Write returns.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.lines <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close drains the remaining buffered lines and closes the target.
func (a *AsyncLogger) Close() error {
	a.once.Do(func() {
		close(a.lines)
	})
	<-a.done
	return a.target.Close()
}
