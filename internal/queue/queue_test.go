// ABOUTME: Tests for the phase keyed action queue
// ABOUTME: Covers ordering, same-key replacement and removal
package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunInOrder(t *testing.T) {
	q := New()
	var got []string

	q.Add("ready", "a", func() { got = append(got, "a") })
	q.Add("ready", "b", func() { got = append(got, "b") })
	q.Add("suspended", "c", func() { got = append(got, "c") })

	q.Run("ready")
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, q.Len("ready"))
	assert.Equal(t, 1, q.Len("suspended"))
}

func TestSameKeyReplacesInPlace(t *testing.T) {
	q := New()
	var got []string

	q.Add("p", "suspend", func() { got = append(got, "first") })
	q.Add("p", "other", func() { got = append(got, "other") })
	q.Add("p", "suspend", func() { got = append(got, "second") })

	q.Run("p")
	assert.Equal(t, []string{"second", "other"}, got)
}

func TestActionMayRequeue(t *testing.T) {
	q := New()
	runs := 0
	q.Add("p", "k", func() {
		runs++
		q.Add("p", "k", func() { runs++ })
	})

	q.Run("p")
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, q.Len("p"))
}

func TestRemoveAndClear(t *testing.T) {
	q := New()
	ran := false
	q.Add("a", "k", func() { ran = true })
	q.Add("b", "k", func() { ran = true })

	q.Remove("a")
	q.Run("a")
	assert.False(t, ran)

	q.Clear()
	q.Run("b")
	assert.False(t, ran)
}
