package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bus_pass_service/internal/app"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu     sync.Mutex
	calls  int
	report *app.SweepReport
	err    error
	ran    chan struct{}
}

func (f *fakeSweeper) RunSweepNow(ctx context.Context) (*app.SweepReport, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	return f.report, f.err
}

type fakeTelegram struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeTelegram) SendText(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestAlertScheduler_InvalidSpec(t *testing.T) {
	s := NewAlertScheduler(&fakeSweeper{}, "not a spec", time.UTC, testLogger())
	assert.Error(t, s.Start())
}

func TestAlertScheduler_RunOnStart(t *testing.T) {
	sw := &fakeSweeper{report: &app.SweepReport{ID: "r1"}, ran: make(chan struct{}, 1)}
	s := NewAlertScheduler(sw, "@every 1h", time.UTC, testLogger(), WithRunOnStart(true))
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-sw.ran:
	case <-time.After(time.Second):
		t.Fatal("sweep did not run on start")
	}
}

// slowSweeper blocks until its context is cancelled, then takes a while to
// finish recording outcomes.
type slowSweeper struct {
	started  chan struct{}
	finished atomic.Bool
}

func (f *slowSweeper) RunSweepNow(ctx context.Context) (*app.SweepReport, error) {
	close(f.started)
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	f.finished.Store(true)
	return nil, ctx.Err()
}

func TestAlertScheduler_StopWaitsForStartupSweep(t *testing.T) {
	sw := &slowSweeper{started: make(chan struct{})}
	s := NewAlertScheduler(sw, "@every 1h", time.UTC, testLogger(), WithRunOnStart(true))
	require.NoError(t, s.Start())

	select {
	case <-sw.started:
	case <-time.After(time.Second):
		t.Fatal("sweep did not run on start")
	}

	s.Stop()
	assert.True(t, sw.finished.Load(), "Stop returned while the startup sweep was still running")
}

func TestAlertScheduler_NotifiesAdminOnFailures(t *testing.T) {
	tg := &fakeTelegram{}

	s := NewAlertScheduler(&fakeSweeper{report: &app.SweepReport{ID: "r1", Sent: 2, Failed: 1}}, "@every 1h", time.UTC, testLogger(), WithAdminNotifier(tg, 42))
	s.runSweep()
	require.Len(t, tg.messages, 1)
	assert.Contains(t, tg.messages[0], "1 failed")

	s = NewAlertScheduler(&fakeSweeper{report: &app.SweepReport{ID: "r2", Sent: 2}}, "@every 1h", time.UTC, testLogger(), WithAdminNotifier(tg, 42))
	s.runSweep()
	assert.Len(t, tg.messages, 1)

	s = NewAlertScheduler(&fakeSweeper{err: errors.New("db down")}, "@every 1h", time.UTC, testLogger(), WithAdminNotifier(tg, 42))
	s.runSweep()
	require.Len(t, tg.messages, 2)
	assert.Contains(t, tg.messages[1], "db down")
}
