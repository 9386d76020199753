// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import "fmt"

// ProgressSink receives milestones. increment is the percentage added by
// this step; the increments of one run sum to 100.
type ProgressSink interface {
	Report(increment int, message string)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Report(int, string) {}

// Notifier receives the single terminal outcome of a run.
type Notifier interface {
	Notify(Outcome)
}

// NopNotifier discards the outcome.
type NopNotifier struct{}

func (NopNotifier) Notify(Outcome) {}

// Milestone percentages.
const (
	pctQuery   = 5
	pctFound   = 20
	pctFolders = 40
	pctCopied  = 85
	pctWrite   = 90
	pctCommit  = 95
	pctDone    = 100
)

// Milestone messages.
const (
	MsgQuery    = "Getting changed files..."
	MsgFolders  = "Creating folder structure..."
	MsgManifest = "Writing manifest..."
	MsgCommit   = "Committing destination..."
	MsgDone     = "Export completed!"
)

// MsgFound is the milestone after the change set is resolved.
func MsgFound(n int) string {
	return fmt.Sprintf("Found %d changed files", n)
}

// MsgCopying is reported after each file.
func MsgCopying(i, n int) string {
	return fmt.Sprintf("Copying files... (%d/%d)", i, n)
}

// tracker turns absolute percentages into increments.
type tracker struct {
	sink ProgressSink
	at   int
}

func (t *tracker) advance(pct int, message string) {
	if pct > pctDone {
		pct = pctDone
	}
	inc := pct - t.at
	if inc < 0 {
		inc = 0
	}
	t.at += inc
	t.sink.Report(inc, message)
}

// copying maps file i of n onto the copy band of the bar.
func (t *tracker) copying(i, n int) {
	pct := pctFolders
	if n > 0 {
		pct += (pctCopied - pctFolders) * i / n
	}
	t.advance(pct, MsgCopying(i, n))
}
