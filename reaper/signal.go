// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reaper

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/thediveo/once"
	"golang.org/x/sys/unix"
)

// CleanupOnSignal runs a cleanup pass of the specified Reaper when the process
// receives one of the specified signals, defaulting to SIGINT and SIGTERM. The
// cleanup runs at most once. It returns a stop function that stops waiting for
// signals and waits for an ongoing cleanup pass to finish; calling stop more
// than once is fine. Cancelling the context also stops waiting for signals,
// but doesn't cancel an ongoing cleanup pass.
//
// The optional done callback receives the report of the cleanup pass.
func CleanupOnSignal(ctx context.Context, r Reaper, done func(*Report), signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{unix.SIGINT, unix.SIGTERM}
	}
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, signals...)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			report := r.PerformCleanup(context.WithoutCancel(ctx))
			if done != nil {
				done(report)
			}
		case <-ctx.Done():
		case <-quit:
		}
	}()
	return once.Once(func() {
		close(quit)
		wg.Wait()
	}).Do
}
