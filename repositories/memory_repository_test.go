package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCounterStoreIncrementIfBelow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryCounterStore()
	store.now = clock.Now

	counters := []interfaces.WindowCounter{
		{Key: "hourly", Limit: 2, TTL: time.Hour},
		{Key: "daily", Limit: 3, TTL: 24 * time.Hour},
	}

	for i := 0; i < 2; i++ {
		ok, err := store.IncrementIfBelow(ctx, counters)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := store.IncrementIfBelow(ctx, counters)
	require.NoError(t, err)
	assert.False(t, ok)

	daily, _ := store.Get(ctx, "daily")
	assert.EqualValues(t, 2, daily, "a denied increment touches no counter")

	clock.Advance(time.Hour)
	hourly, _ := store.Get(ctx, "hourly")
	assert.Zero(t, hourly, "expired counters read as zero")

	ok, err = store.IncrementIfBelow(ctx, counters)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IncrementIfBelow(ctx, counters)
	require.NoError(t, err)
	assert.False(t, ok, "daily limit holds across hours")

	assert.Equal(t, 0, store.Prune())
	clock.Advance(24 * time.Hour)
	assert.Equal(t, 2, store.Prune())
}

func TestMemoryCounterStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore()
	counters := []interfaces.WindowCounter{{Key: "k", Limit: 10, TTL: time.Minute}}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.IncrementIfBelow(ctx, counters); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
}

func TestMemorySendGuardStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	store := NewMemorySendGuardStore()
	store.now = clock.Now

	ok, err := store.SetIfAbsent(ctx, "mark", clock.Now(), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "mark", clock.Now(), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := store.Exists(ctx, "mark")
	require.NoError(t, err)
	assert.True(t, exists)

	clock.Advance(time.Hour)
	exists, _ = store.Exists(ctx, "mark")
	assert.False(t, exists)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Prune())
	assert.Zero(t, store.Len())

	ok, _ = store.SetIfAbsent(ctx, "again", clock.Now(), time.Hour)
	assert.True(t, ok)
	require.NoError(t, store.Delete(ctx, "again"))
	exists, _ = store.Exists(ctx, "again")
	assert.False(t, exists)
}

func TestMemoryDeliveryTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryDeliveryTracker()
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	_, err := tracker.Track(ctx, "missing", "SM0")
	assert.Error(t, err, "messages need an open run")

	require.NoError(t, tracker.Open(ctx, models.PendingRun{
		RunID:     "run-1",
		RuleID:    "rule-1",
		CreatedAt: created,
	}))
	for _, id := range []string{"SM1", "SM2"} {
		held, err := tracker.Track(ctx, "run-1", id)
		require.NoError(t, err)
		assert.Empty(t, held)
	}

	run, settled, err := tracker.Resolve(ctx, "SM1", false)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.False(t, settled)
	assert.EqualValues(t, 1, run.Pending)
	assert.True(t, run.Failed)

	run, settled, err = tracker.Resolve(ctx, "SM1", true)
	require.NoError(t, err)
	assert.Nil(t, run, "each message resolves once")
	assert.False(t, settled)

	run, settled, err = tracker.Resolve(ctx, "SM2", true)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.False(t, settled, "an open run waits for Close")
	assert.Equal(t, 1, tracker.PendingRuns())

	run, settled, err = tracker.Close(ctx, "run-1", false)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, settled)
	assert.True(t, run.Failed, "a failed delivery fails the run")
	assert.Equal(t, "rule-1", run.RuleID)
	assert.Zero(t, tracker.PendingRuns())

	_, _, err = tracker.Close(ctx, "run-1", false)
	assert.Error(t, err)
}

func TestMemoryDeliveryTrackerSettlesOnLastReportAfterClose(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryDeliveryTracker()

	require.NoError(t, tracker.Open(ctx, models.PendingRun{RunID: "run-1"}))
	_, err := tracker.Track(ctx, "run-1", "SM1")
	require.NoError(t, err)

	_, settled, err := tracker.Close(ctx, "run-1", false)
	require.NoError(t, err)
	assert.False(t, settled)

	run, settled, err := tracker.Resolve(ctx, "SM1", true)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, settled)
	assert.False(t, run.Failed)
	assert.Zero(t, tracker.PendingRuns())
}

func TestMemoryDeliveryTrackerHoldsEarlyReports(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	tracker := NewMemoryDeliveryTracker()
	tracker.now = clock.Now

	run, settled, err := tracker.Resolve(ctx, "SM1", false)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.False(t, settled)
	assert.Equal(t, 1, tracker.HeldReports())

	require.NoError(t, tracker.Open(ctx, models.PendingRun{RunID: "run-1"}))
	held, err := tracker.Track(ctx, "run-1", "SM1")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, held)
	assert.Zero(t, tracker.HeldReports())

	run, settled, err = tracker.Close(ctx, "run-1", false)
	require.NoError(t, err)
	assert.True(t, settled, "nothing is left to report")
	assert.True(t, run.Failed)

	_, _, err = tracker.Resolve(ctx, "SM-stray", true)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = tracker.Prune(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, tracker.HeldReports(), "held reports expire")
}

func TestMemoryDeliveryTrackerPrune(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryDeliveryTracker()
	old := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	for id, created := range map[string]time.Time{"old": old, "recent": recent} {
		require.NoError(t, tracker.Open(ctx, models.PendingRun{RunID: id, CreatedAt: created}))
		_, err := tracker.Track(ctx, id, "SM-"+id)
		require.NoError(t, err)
	}

	removed, err := tracker.Prune(ctx, recent.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tracker.PendingRuns())

	run, _, err := tracker.Resolve(ctx, "SM-old", true)
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestMemoryAutomationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAutomationStore()

	store.PutOrganization(models.Organization{ID: "b-school", IsActive: true})
	store.PutOrganization(models.Organization{ID: "a-school", IsActive: true})

	orgs, err := store.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "a-school", orgs[0].ID)

	_, err = store.GetOrganization(ctx, "missing")
	assert.Equal(t, utils.ErrCodeNotFound, utils.ErrorCode(err))

	rule := &models.AutomationRule{OrganizationID: "a-school", Name: "r", Enabled: true}
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NotEmpty(t, rule.ID)
	require.NoError(t, store.CreateRule(ctx, &models.AutomationRule{ID: "off", OrganizationID: "a-school"}))

	enabled, err := store.ListEnabledRules(ctx, "a-school")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, rule.ID, enabled[0].ID)

	all, err := store.ListRules(ctx, "a-school")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.IncrementRunCounters(ctx, "a-school", rule.ID, models.OutcomeRun))
	require.NoError(t, store.IncrementRunCounters(ctx, "a-school", rule.ID, models.OutcomeFailure))
	lastRun := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastRun(ctx, "a-school", rule.ID, lastRun, nil))

	stored, err := store.GetRule(ctx, "a-school", rule.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.RunCount)
	assert.EqualValues(t, 1, stored.FailureCount)
	assert.Equal(t, lastRun, *stored.LastRun)
	assert.Nil(t, stored.NextRun)

	_, err = store.GetRule(ctx, "b-school", rule.ID)
	assert.Equal(t, utils.ErrCodeNotFound, utils.ErrorCode(err), "rules do not leak across organizations")
	assert.Error(t, store.IncrementRunCounters(ctx, "b-school", rule.ID, models.OutcomeRun))

	require.NoError(t, store.SetRuleEnabled(ctx, "a-school", "off", true))
	enabled, _ = store.ListEnabledRules(ctx, "a-school")
	assert.Len(t, enabled, 2)

	template := &models.MessageTemplate{OrganizationID: "a-school", Name: "Reminder", Content: "Hi {name}", Enabled: true}
	require.NoError(t, store.CreateTemplate(ctx, template))
	require.NoError(t, store.IncrementTemplateUsage(ctx, "a-school", template.ID, models.OutcomeRun))
	require.NoError(t, store.IncrementTemplateUsage(ctx, "a-school", template.ID, models.OutcomeSuccess))

	fetched, err := store.GetTemplate(ctx, "a-school", template.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetched.UsageCount)
	assert.EqualValues(t, 1, fetched.SuccessCount)

	store.PutRecipients("a-school", models.Recipient{ID: "stu-1", Name: "Ana"})
	recipients, err := store.ListRecipients(ctx, "a-school")
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "a-school", recipients[0].OrganizationID)

	store.RecipientErr = errors.New("offline")
	_, err = store.ListRecipients(ctx, "a-school")
	assert.Error(t, err)
}
