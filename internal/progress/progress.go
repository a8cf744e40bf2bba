// Copyright 2017 Intel Corporation
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

// Package progress formats the one-line-per-step status updates the
// download phase emits for a long-running batch operation, in
// the same tagged style log.Info already uses elsewhere in this module.
package progress

import (
	"sync"

	"github.com/clearlinux/swupd-client/log"
)

// Batch tracks progress through a fixed-size unit of work (a download
// list, an install list) and reports it as a percentage, logging only when
// the percentage actually advances so a batch of thousands of small files
// doesn't produce thousands of lines. Safe for concurrent use by the
// download pipeline's worker pool.
type Batch struct {
	mu         sync.Mutex
	cmdTag     string
	label      string
	total      int
	done       int
	lastReport int
}

// NewBatch starts tracking a batch of total items, reported under cmdTag
// (one of the log package's command tags) with the given label (e.g.
// "downloading", "installing").
func NewBatch(cmdTag, label string, total int) *Batch {
	return &Batch{cmdTag: cmdTag, label: label, total: total, lastReport: -1}
}

// Step records one completed unit of work and logs a new percentage line
// if it has advanced since the last call.
func (b *Batch) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	b.report()
}

// Add records n completed units of work in one call.
func (b *Batch) Add(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += n
	b.report()
}

// report must be called with b.mu held.
func (b *Batch) report() {
	if b.total <= 0 {
		return
	}
	pct := b.done * 100 / b.total
	if pct > 100 {
		pct = 100
	}
	if pct == b.lastReport {
		return
	}
	b.lastReport = pct
	log.Info(b.cmdTag, "%s %d%% (%d/%d)", b.label, pct, b.done, b.total)
}

// Done reports whether every unit of the batch has been stepped.
func (b *Batch) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done >= b.total
}
