// Copyright (c) 2015-2020 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"sync"
	"time"

	"github.com/decred/slog"
)

// logInterval is the minimum amount of time between unforced progress
// messages.
const logInterval = time.Second * 10

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Logger provides periodic logging of hash search progress.
type Logger struct {
	sync.Mutex
	subsystemLogger slog.Logger
	progressAction  string

	// lastLogTime tracks the last time a log statement was shown.
	lastLogTime time.Time

	// These fields accumulate information about the search between log
	// statements.
	searchedHashes  uint64
	receivedReports uint64
	blockIndex      int64
}

// New returns a new hash search progress logger.
func New(progressAction string, logger slog.Logger) *Logger {
	return &Logger{
		lastLogTime:     time.Now(),
		progressAction:  progressAction,
		subsystemLogger: logger,
	}
}

// LogProgress accumulates the number of hashes searched for the block at the
// provided index and periodically (every 10 seconds) logs an information
// message to show progress to the user along with duration and totals
// included.
//
// The force flag may be used to force a log message to be shown regardless of
// the time the last one was shown.
//
// The progress message is templated as follows:
//
//	{progressAction} {numHashes} {hashes|hash} in the last {timePeriod}
//	({numReports} {reports|report}, block {blockIndex})
func (l *Logger) LogProgress(hashes uint64, blockIndex int64, forceLog bool) {
	l.Lock()
	defer l.Unlock()

	l.searchedHashes += hashes
	l.receivedReports++
	l.blockIndex = blockIndex
	now := time.Now()
	duration := now.Sub(l.lastLogTime)
	if !forceLog && duration < logInterval {
		return
	}

	l.subsystemLogger.Infof("%s %d %s in the last %0.2fs (%d %s, block %d)",
		l.progressAction, l.searchedHashes,
		pickNoun(l.searchedHashes, "hash", "hashes"), duration.Seconds(),
		l.receivedReports, pickNoun(l.receivedReports, "report", "reports"),
		l.blockIndex)

	l.searchedHashes = 0
	l.receivedReports = 0
	l.lastLogTime = now
}

// SetLastLogTime updates the last time data was logged to the provided time.
func (l *Logger) SetLastLogTime(time time.Time) {
	l.Lock()
	l.lastLogTime = time
	l.Unlock()
}
