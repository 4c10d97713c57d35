package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/cache"
	dbtestutil "github.com/EL-KENDEH-TEAM/EK-SMS/internal/database/testutil"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
)

type fakeWorkflow struct {
	expired     int
	reminded    int
	expireErr   error
	remindErr   error
	expireCalls int
	remindCalls int
}

func (f *fakeWorkflow) ExpireStale(context.Context) (int, error) {
	f.expireCalls++
	return f.expired, f.expireErr
}

func (f *fakeWorkflow) SendReminders(context.Context) (int, error) {
	f.remindCalls++
	return f.reminded, f.remindErr
}

func TestSweeperRunOnceRunsEveryJob(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := cache.NewDatabaseStore(db, cache.WithDatabaseClock(clock))
	ctx := context.Background()
	_, _, err := store.IncrementWithTTL(ctx, "ratelimit:resend:10.0.0.1", time.Minute)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	workflow := &fakeWorkflow{expired: 2, reminded: 1}
	sweeper := NewSweeper(workflow, WithCachePurger(store), WithNow(clock))

	purgesBefore := testutil.ToFloat64(metrics.SweepRuns.WithLabelValues(JobCachePurge, "ok"))
	require.NoError(t, sweeper.RunOnce(ctx))

	require.Equal(t, 1, workflow.expireCalls)
	require.Equal(t, 1, workflow.remindCalls)
	require.Equal(t, purgesBefore+1, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues(JobCachePurge, "ok")))

	var remaining int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestSweeperRunOnceContinuesAfterFailure(t *testing.T) {
	workflow := &fakeWorkflow{
		expireErr: errors.New("database unavailable"),
		remindErr: errors.New("smtp down"),
	}
	sweeper := NewSweeper(workflow)

	failuresBefore := testutil.ToFloat64(metrics.SweepRuns.WithLabelValues(JobExpiry, "error"))
	err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Contains(t, err.Error(), "expiry: database unavailable")
	require.Contains(t, err.Error(), "reminders: smtp down")
	require.Equal(t, 1, workflow.remindCalls, "a failing job does not stop later ones")
	require.Equal(t, failuresBefore+1, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues(JobExpiry, "error")))
}

func TestSweeperStartRegistersSchedule(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	sweeper := NewSweeper(&fakeWorkflow{}, WithCron(scheduler), WithSchedule("*/15 * * * *"))

	require.NoError(t, sweeper.Start())
	t.Cleanup(func() { <-sweeper.Stop().Done() })
	require.Len(t, scheduler.Entries(), 1)
}

func TestSweeperStartRejectsInvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(&fakeWorkflow{}, WithSchedule("not a schedule"))
	require.Error(t, sweeper.Start())
}

func TestSweeperWithoutJobsIsNoop(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	sweeper := NewSweeper(nil, WithCron(scheduler))

	require.NoError(t, sweeper.Start())
	require.Empty(t, scheduler.Entries())
	require.NoError(t, sweeper.RunOnce(context.Background()))
}
