// Copyright (c) 2021 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/decred/slog"
)

var (
	backendLog = slog.NewBackend(io.Discard)
	testLog    = backendLog.Logger("TEST")
)

// TestLogProgress ensures the logging functionality works as expected via a
// test logger.
func TestLogProgress(t *testing.T) {
	tests := []struct {
		name             string
		reset            bool
		hashes           uint64
		blockIndex       int64
		forceLog         bool
		inputLastLogTime time.Time
		wantHashes       uint64
		wantReports      uint64
		wantBlockIndex   int64
	}{{
		name:             "round 1, report 1, last log time < 10 secs ago, not forced",
		hashes:           100000,
		blockIndex:       5,
		inputLastLogTime: time.Now(),
		wantHashes:       100000,
		wantReports:      1,
		wantBlockIndex:   5,
	}, {
		name:             "round 1, report 2, last log time < 10 secs ago, not forced",
		hashes:           100000,
		blockIndex:       5,
		inputLastLogTime: time.Now(),
		wantHashes:       200000,
		wantReports:      2,
		wantBlockIndex:   5,
	}, {
		name:             "round 1, report 3, new block, last log time < 10 secs ago, not forced",
		hashes:           42,
		blockIndex:       6,
		inputLastLogTime: time.Now(),
		wantHashes:       200042,
		wantReports:      3,
		wantBlockIndex:   6,
	}, {
		name:             "round 1, report 4, last log time < 10 secs ago, forced",
		hashes:           100000,
		blockIndex:       6,
		forceLog:         true,
		inputLastLogTime: time.Now(),
		wantHashes:       0,
		wantReports:      0,
		wantBlockIndex:   6,
	}, {
		name:             "round 2, report 1, last log time < 10 secs ago, not forced",
		reset:            true,
		hashes:           100000,
		blockIndex:       7,
		inputLastLogTime: time.Now(),
		wantHashes:       100000,
		wantReports:      1,
		wantBlockIndex:   7,
	}, {
		name:             "round 2, report 2, last log time > 10 secs ago, not forced",
		hashes:           100000,
		blockIndex:       7,
		inputLastLogTime: time.Now().Add(-11 * time.Second),
		wantHashes:       0,
		wantReports:      0,
		wantBlockIndex:   7,
	}}

	progressLogger := New("Searched", testLog)
	for _, test := range tests {
		if test.reset {
			progressLogger = New("Searched", testLog)
		}
		progressLogger.SetLastLogTime(test.inputLastLogTime)
		progressLogger.LogProgress(test.hashes, test.blockIndex, test.forceLog)
		want := &Logger{
			searchedHashes:  test.wantHashes,
			receivedReports: test.wantReports,
			blockIndex:      test.wantBlockIndex,
			lastLogTime:     progressLogger.lastLogTime,
			progressAction:  progressLogger.progressAction,
			subsystemLogger: progressLogger.subsystemLogger,
		}
		if !reflect.DeepEqual(progressLogger, want) {
			t.Errorf("%s:\nwant: %+v\ngot: %+v\n", test.name, want,
				progressLogger)
		}
	}
}
