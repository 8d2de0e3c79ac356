// Package crcycle tracks the change-request batch an originator is filling.
package crcycle

import (
	"fmt"
	"strings"
	"sync"
)

// Cycle is a CR batch. Number and Date are locked once a work was submitted.
type Cycle struct {
	TargetCount    int    `json:"targetCount"`
	SubmittedCount int    `json:"submittedCount"`
	CRNumber       string `json:"crNumber"`
	CRDate         string `json:"crDate"`
}

func (c Cycle) Locked() bool {
	return c.SubmittedCount > 0
}

// ShortfallError is returned when a batch is forwarded before the target is met.
type ShortfallError struct {
	CRNumber  string
	Target    int
	Submitted int
}

func (e *ShortfallError) Missing() int {
	return e.Target - e.Submitted
}

func (e *ShortfallError) Error() string {
	n := e.Missing()
	noun := "works"
	if n == 1 {
		noun = "work"
	}
	return fmt.Sprintf("CR %s needs %d more %s before forwarding (%d of %d submitted)", e.CRNumber, n, noun, e.Submitted, e.Target)
}

// Tracker holds at most one active cycle. The zero value is ready to use.
type Tracker struct {
	mu     sync.Mutex
	active *Cycle
}

// OpenOrUpdate creates the cycle or updates it while nothing was submitted.
// A locked cycle is left untouched and false is returned. A non-positive
// target discards the cycle.
func (t *Tracker) OpenOrUpdate(target int, crNumber, crDate string) (Cycle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if target <= 0 {
		t.active = nil
		return Cycle{}, true
	}
	crNumber = strings.TrimSpace(crNumber)
	crDate = strings.TrimSpace(crDate)
	if t.active == nil {
		t.active = &Cycle{TargetCount: target, CRNumber: crNumber, CRDate: crDate}
		return *t.active, true
	}
	if t.active.Locked() {
		return *t.active, false
	}
	t.active.TargetCount = target
	t.active.CRNumber = crNumber
	t.active.CRDate = crDate
	return *t.active, true
}

// RecordSubmission counts one work against the active cycle and closes the
// cycle when the target is reached. The cycle as it was after counting is
// returned; ok is false when no cycle is active.
func (t *Tracker) RecordSubmission() (c Cycle, closed bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return Cycle{}, false, false
	}
	t.active.SubmittedCount++
	c = *t.active
	if c.SubmittedCount >= c.TargetCount {
		t.active = nil
		closed = true
	}
	return c, closed, true
}

// Shortfall is how many more local works the active cycle needs. It is zero
// when no cycle is active.
func (t *Tracker) Shortfall(totalLocal int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || totalLocal >= t.active.TargetCount {
		return 0
	}
	return t.active.TargetCount - totalLocal
}

func (t *Tracker) IsSatisfied(totalLocal int) bool {
	return t.Shortfall(totalLocal) == 0
}

// Gate returns a *ShortfallError when the active cycle blocks forwarding.
func (t *Tracker) Gate(totalLocal int) error {
	if t.IsSatisfied(totalLocal) {
		return nil
	}
	c, ok := t.Active()
	if !ok {
		return nil
	}
	return &ShortfallError{CRNumber: c.CRNumber, Target: c.TargetCount, Submitted: totalLocal}
}

func (t *Tracker) Active() (Cycle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return Cycle{}, false
	}
	return *t.active, true
}

func (t *Tracker) Discard() {
	t.mu.Lock()
	t.active = nil
	t.mu.Unlock()
}
