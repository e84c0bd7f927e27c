package timerqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.Peek()
	require.False(t, ok)
	_, ok = q.PopIfDue(time.Now())
	require.False(t, ok)
	require.Equal(t, 0, q.Len())
}

func TestPopIfDueOrdersByDeadline(t *testing.T) {
	q := New()
	base := time.Unix(1000, 0)
	q.Push(Entry{Deadline: base.Add(3 * time.Second), Ctx: "third"})
	q.Push(Entry{Deadline: base.Add(1 * time.Second), Ctx: "first"})
	q.Push(Entry{Deadline: base.Add(2 * time.Second), Ctx: "second"})
	require.Equal(t, 3, q.Len())

	d, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, base.Add(1*time.Second), d)

	e, ok := q.PopIfDue(base.Add(5 * time.Second))
	require.True(t, ok)
	require.Equal(t, "first", e.Ctx)

	e, ok = q.PopIfDue(base.Add(5 * time.Second))
	require.True(t, ok)
	require.Equal(t, "second", e.Ctx)

	e, ok = q.PopIfDue(base.Add(5 * time.Second))
	require.True(t, ok)
	require.Equal(t, "third", e.Ctx)

	require.Equal(t, 0, q.Len())
}

func TestPopIfDueNotYetDue(t *testing.T) {
	q := New()
	base := time.Unix(1000, 0)
	q.Push(Entry{Deadline: base.Add(10 * time.Second), Ctx: "later"})

	_, ok := q.PopIfDue(base)
	require.False(t, ok)
	require.Equal(t, 1, q.Len())

	e, ok := q.PopIfDue(base.Add(10 * time.Second))
	require.True(t, ok)
	require.Equal(t, "later", e.Ctx)
}

func TestCallbackInvocation(t *testing.T) {
	q := New()
	base := time.Unix(2000, 0)
	fired := false
	q.Push(Entry{
		Deadline: base,
		Callback: func(now time.Time, ctx any) { fired = true },
		Ctx:      nil,
	})
	e, ok := q.PopIfDue(base)
	require.True(t, ok)
	e.Callback(base, e.Ctx)
	require.True(t, fired)
}
