package sync

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailyTimes(t *testing.T) {
	times, err := ParseDailyTimes([]string{"18:00", " 09:00", "", "9:00", "18:00"})
	require.NoError(t, err)
	assert.Equal(t, []ClockTime{{9, 0}, {18, 0}}, times)
	assert.Equal(t, "09:00", times[0].String())

	none, err := ParseDailyTimes(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseDailyTimesRejectsMalformed(t *testing.T) {
	for _, value := range []string{"25:00", "09:60", "9", "ab:cd", "09:5", "-1:00"} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseDailyTimes([]string{"09:00", value})
			require.Error(t, err)
			assert.Contains(t, err.Error(), value)
		})
	}
}

func TestNextAfter(t *testing.T) {
	times := []ClockTime{{9, 0}, {18, 0}}
	day := func(d, h, m int) time.Time { return time.Date(2024, 6, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", day(10, 8, 0), day(10, 9, 0)},
		{"exactly at first", day(10, 9, 0), day(10, 18, 0)},
		{"between", day(10, 12, 30), day(10, 18, 0)},
		{"after last", day(10, 19, 0), day(11, 9, 0)},
		{"month rollover", time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC), time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextAfter(times, tt.now))
		})
	}

	assert.True(t, NextAfter(nil, day(10, 8, 0)).IsZero())
}

// fakeTimer hands out one channel per after() call so a test can fire the
// pending timer explicitly.
type fakeTimer struct {
	mu      gosync.Mutex
	pending []chan time.Time
	waits   []time.Duration
}

func (f *fakeTimer) after(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 1)
	f.pending = append(f.pending, ch)
	f.waits = append(f.waits, d)
	return ch
}

func (f *fakeTimer) fireLatest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return false
	}
	f.pending[len(f.pending)-1] <- time.Time{}
	return true
}

func (f *fakeTimer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func newTestScheduler(t *testing.T, trigger Trigger) (*Scheduler, *fakeTimer) {
	t.Helper()
	ft := &fakeTimer{}
	now := func() time.Time { return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC) }
	s := New([]ClockTime{{9, 0}, {18, 0}}, trigger, WithClock(now, ft.after))
	t.Cleanup(s.Stop)
	return s, ft
}

func TestSchedulerFiresAtScheduledTime(t *testing.T) {
	reasons := make(chan string, 4)
	s, ft := newTestScheduler(t, func(reason string) { reasons <- reason })

	s.Start()
	require.Eventually(t, func() bool { return ft.calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), s.NextRun())

	ft.mu.Lock()
	assert.Equal(t, time.Hour, ft.waits[0])
	ft.mu.Unlock()

	require.True(t, ft.fireLatest())
	select {
	case r := <-reasons:
		assert.Equal(t, ReasonSchedule, r)
	case <-time.After(time.Second):
		t.Fatal("scheduled trigger did not fire")
	}
}

func TestSchedulerFetchNowUsesTriggerPath(t *testing.T) {
	reasons := make(chan string, 4)
	s, _ := newTestScheduler(t, func(reason string) { reasons <- reason })

	s.Start()
	s.FetchNow()

	select {
	case r := <-reasons:
		assert.Equal(t, ReasonManual, r)
	case <-time.After(time.Second):
		t.Fatal("on-demand trigger did not fire")
	}
}

func TestSchedulerFetchNowWhenStopped(t *testing.T) {
	var got []string
	s, _ := newTestScheduler(t, func(reason string) { got = append(got, reason) })

	s.FetchNow()
	assert.Equal(t, []string{ReasonManual}, got)
}

func TestSchedulerStopDoesNotWaitForRuns(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s, _ := newTestScheduler(t, func(string) {
		close(entered)
		<-release
	})
	defer close(release)

	s.Start()
	s.FetchNow()
	<-entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an in-flight trigger")
	}
	assert.False(t, s.Running())
	assert.True(t, s.NextRun().IsZero())
}

func TestSchedulerRestart(t *testing.T) {
	reasons := make(chan string, 4)
	s, ft := newTestScheduler(t, func(reason string) { reasons <- reason })

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return ft.calls() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	s.Start()
	require.Eventually(t, func() bool { return ft.calls() == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, ft.fireLatest())
	select {
	case r := <-reasons:
		assert.Equal(t, ReasonSchedule, r)
	case <-time.After(time.Second):
		t.Fatal("restarted scheduler did not fire")
	}
}

func TestSchedulerRecoversFromPanickingTrigger(t *testing.T) {
	calls := make(chan struct{}, 2)
	s, _ := newTestScheduler(t, func(string) {
		calls <- struct{}{}
		panic("boom")
	})

	s.Start()
	s.FetchNow()
	<-calls
	require.Eventually(t, func() bool {
		s.FetchNow()
		select {
		case <-calls:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.True(t, s.Running())
}
