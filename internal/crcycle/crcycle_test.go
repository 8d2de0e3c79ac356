package crcycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_OpenAndUpdateBeforeSubmission(t *testing.T) {
	var tr Tracker
	c, ok := tr.OpenOrUpdate(3, " CR-7 ", "2024-01-01")
	require.True(t, ok)
	assert.Equal(t, Cycle{TargetCount: 3, CRNumber: "CR-7", CRDate: "2024-01-01"}, c)

	c, ok = tr.OpenOrUpdate(2, "CR-8", "2024-02-02")
	require.True(t, ok)
	assert.Equal(t, 2, c.TargetCount)
	assert.Equal(t, "CR-8", c.CRNumber)
}

func TestTracker_LockedAfterFirstSubmission(t *testing.T) {
	var tr Tracker
	tr.OpenOrUpdate(3, "CR-7", "2024-01-01")
	_, closed, ok := tr.RecordSubmission()
	require.True(t, ok)
	require.False(t, closed)

	c, changed := tr.OpenOrUpdate(5, "CR-9", "2025-01-01")
	assert.False(t, changed)
	assert.Equal(t, Cycle{TargetCount: 3, SubmittedCount: 1, CRNumber: "CR-7", CRDate: "2024-01-01"}, c)
}

func TestTracker_ClosesAtTarget(t *testing.T) {
	var tr Tracker
	tr.OpenOrUpdate(2, "CR-1", "2024-01-01")
	tr.RecordSubmission()
	c, closed, ok := tr.RecordSubmission()
	require.True(t, ok)
	assert.True(t, closed)
	assert.Equal(t, 2, c.SubmittedCount)

	_, active := tr.Active()
	assert.False(t, active)
	_, _, ok = tr.RecordSubmission()
	assert.False(t, ok)
}

func TestTracker_NonPositiveTargetDiscards(t *testing.T) {
	var tr Tracker
	tr.OpenOrUpdate(2, "CR-1", "2024-01-01")
	tr.RecordSubmission()
	_, ok := tr.OpenOrUpdate(0, "", "")
	assert.True(t, ok)
	_, active := tr.Active()
	assert.False(t, active)
}

func TestTracker_Gate(t *testing.T) {
	var tr Tracker
	assert.True(t, tr.IsSatisfied(0))
	require.NoError(t, tr.Gate(0))

	tr.OpenOrUpdate(3, "CR-7", "2024-01-01")
	assert.Equal(t, 2, tr.Shortfall(1))
	assert.False(t, tr.IsSatisfied(1))

	err := tr.Gate(1)
	var short *ShortfallError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 2, short.Missing())
	assert.Equal(t, "CR CR-7 needs 2 more works before forwarding (1 of 3 submitted)", err.Error())

	assert.Equal(t, "CR CR-7 needs 1 more work before forwarding (2 of 3 submitted)", tr.Gate(2).Error())
	assert.NoError(t, tr.Gate(3))

	tr.Discard()
	assert.NoError(t, tr.Gate(0))
}
