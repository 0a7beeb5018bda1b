package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSingleFieldChange(t *testing.T) {
	oldData := json.RawMessage(`{"name":"Ali","subject":"Math"}`)
	newData := json.RawMessage(`{"name":"Ali","subject":"Physics"}`)

	changes, err := Diff(oldData, newData)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "subject", changes[0].Field)
	assert.Equal(t, "Math", changes[0].OldValue)
	assert.Equal(t, "Physics", changes[0].NewValue)
}

func TestDiffIdenticalSnapshotsEmpty(t *testing.T) {
	data := json.RawMessage(`{"name":"Ali","tags":["a","b"],"meta":{"x":1}}`)

	changes, err := Diff(data, data)
	require.NoError(t, err)

	assert.NotNil(t, changes)
	assert.Empty(t, changes)
}

func TestDiffFollowsNewDataKeyOrder(t *testing.T) {
	oldData := json.RawMessage(`{"a":1,"b":2,"c":3}`)
	newData := json.RawMessage(`{"c":9,"a":1,"b":7}`)

	changes, err := Diff(oldData, newData)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, "c", changes[0].Field)
	assert.Equal(t, "b", changes[1].Field)
}

func TestDiffDeterministic(t *testing.T) {
	oldData := json.RawMessage(`{"title":"Eski","price":100,"active":true}`)
	newData := json.RawMessage(`{"title":"Yeni","price":150,"active":false}`)

	first, err := Diff(oldData, newData)
	require.NoError(t, err)
	second, err := Diff(oldData, newData)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDiffNestedStructuresCompareByContent(t *testing.T) {
	oldData := json.RawMessage(`{"features":["wifi","lab"],"schedule":{"days":["mon","wed"]}}`)
	sameData := json.RawMessage(`{"features":["wifi","lab"],"schedule":{"days":["mon","wed"]}}`)

	changes, err := Diff(oldData, sameData)
	require.NoError(t, err)
	assert.Empty(t, changes)

	newData := json.RawMessage(`{"features":["wifi","lab","cafeteria"],"schedule":{"days":["mon","wed"]}}`)
	changes, err = Diff(oldData, newData)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "features", changes[0].Field)
}

// Approval applies newData as a merge patch, so a field omitted from a
// partial patch stays as it is. The diff must not report it as a removal.
func TestDiffOmittedFieldNotReported(t *testing.T) {
	oldData := json.RawMessage(`{"name":"Ali","subject":"Math"}`)
	newData := json.RawMessage(`{"subject":"Physics"}`)

	changes, err := Diff(oldData, newData)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, "subject", changes[0].Field)
	assert.Equal(t, "Math", changes[0].OldValue)
	assert.Equal(t, "Physics", changes[0].NewValue)
}

// An explicit null is how a merge patch deletes a field, and is the only
// shape of removal the diff reports.
func TestDiffExplicitNullReportsRemoval(t *testing.T) {
	oldData := json.RawMessage(`{"title":"Kurs","discount":10}`)
	newData := json.RawMessage(`{"title":"Yeni Kurs","discount":null}`)

	changes, err := Diff(oldData, newData)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, "title", changes[0].Field)
	assert.Equal(t, "discount", changes[1].Field)
	assert.Equal(t, float64(10), changes[1].OldValue)
	assert.Nil(t, changes[1].NewValue)
}

func TestDiffCreateWithoutOldSnapshot(t *testing.T) {
	newData := json.RawMessage(`{"title":"Duyuru","body":"..."}`)

	changes, err := Diff(nil, newData)
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, "title", changes[0].Field)
	assert.Nil(t, changes[0].OldValue)
	assert.Equal(t, "body", changes[1].Field)
}

func TestDiffRejectsNonObjectSnapshot(t *testing.T) {
	_, err := Diff(json.RawMessage(`{"a":1}`), json.RawMessage(`[1,2,3]`))
	require.Error(t, err)
}
