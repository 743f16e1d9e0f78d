package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJobEncoding(t *testing.T) {
	job := NewRepairJob("enroll", "c1", "s1")
	require.NotEmpty(t, job.ID)

	raw, err := EncodeRepairJob(job)
	require.NoError(t, err)

	decoded, err := DecodeRepairJob(raw)
	require.NoError(t, err)
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, "enroll", decoded.Operation)
	assert.True(t, job.RequestedAt.Equal(decoded.RequestedAt))
}

func TestRepairJobRejectsIncompleteEntries(t *testing.T) {
	_, err := EncodeRepairJob(RepairJob{Operation: "enroll"})
	assert.Error(t, err)

	_, err = DecodeRepairJob(`{"id":"x","operation":"enroll"}`)
	assert.Error(t, err)

	_, err = DecodeRepairJob("enroll|c1")
	assert.Error(t, err)
}
