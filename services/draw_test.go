package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotto/models"
	"lotto/store"
)

func drawRequest(now time.Time) DrawRequest {
	return DrawRequest{
		LotteryType: "thai_gov",
		DrawDate:    now.Add(3 * time.Hour),
		OpenTime:    now.Add(-time.Hour),
		CloseTime:   now.Add(time.Hour),
		Settings:    defaultSettings(),
	}
}

func TestCreateDraw(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()

	draw, err := env.draws.CreateDraw(ctx, env.master.ID, drawRequest(now))
	require.NoError(t, err)
	assert.Equal(t, models.DrawOpen, draw.Status)
	assert.Equal(t, env.master.ID, draw.CreatedBy)

	// only masters create draws
	_, err = env.draws.CreateDraw(ctx, env.agent.ID, drawRequest(now))
	assert.Equal(t, KindForbidden, KindOf(err))

	// close_time must sit before draw_date
	bad := drawRequest(now)
	bad.DrawDate = bad.CloseTime
	_, err = env.draws.CreateDraw(ctx, env.master.ID, bad)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	// open_time must sit before close_time
	bad = drawRequest(now)
	bad.OpenTime, bad.CloseTime = bad.CloseTime, bad.OpenTime
	_, err = env.draws.CreateDraw(ctx, env.master.ID, bad)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestChangeStatus_GuardTable(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()

	// open cannot jump straight to completed
	draw := seedDraw(t, env, now)
	_, _, err := env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawCompleted, sampleResult())
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	// open -> closed -> completed is the happy path
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawClosed, nil)
	require.NoError(t, err)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawCompleted, sampleResult())
	require.NoError(t, err)

	// completed is terminal
	for _, to := range []models.DrawStatus{models.DrawOpen, models.DrawClosed, models.DrawCancelled} {
		_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, to, nil)
		assert.Equal(t, KindInvalidTransition, KindOf(err), "completed -> %s", to)
	}

	// cancellation is reachable from open and from closed
	d2 := seedDraw(t, env, now)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, d2.ID, models.DrawCancelled, nil)
	require.NoError(t, err)

	d3 := seedDraw(t, env, now)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, d3.ID, models.DrawClosed, nil)
	require.NoError(t, err)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, d3.ID, models.DrawCancelled, nil)
	require.NoError(t, err)

	// cancelled is terminal too
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, d3.ID, models.DrawOpen, nil)
	assert.Equal(t, KindInvalidTransition, KindOf(err))
}

func TestChangeStatus_CompletedRequiresResult(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()

	draw := seedDraw(t, env, now)
	_, _, err := env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawClosed, nil)
	require.NoError(t, err)

	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawCompleted, nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	bad := sampleResult()
	bad.ThreeTop = "12x"
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawCompleted, bad)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	bad = sampleResult()
	bad.RunTop = []string{"12"}
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawCompleted, bad)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	// rejected announcements leave the draw closed with no result
	got, err := env.store.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawClosed, got.Status)
	assert.Nil(t, got.Result)
}

func TestUpdateDraw_OnlyWhileOpen(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()
	draw := seedDraw(t, env, now)

	req := drawRequest(now)
	req.CloseTime = now.Add(30 * time.Minute)
	updated, err := env.draws.UpdateDraw(ctx, env.master.ID, draw.ID, req)
	require.NoError(t, err)
	assert.True(t, updated.CloseTime.Equal(req.CloseTime))

	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, draw.ID, models.DrawClosed, nil)
	require.NoError(t, err)
	_, err = env.draws.UpdateDraw(ctx, env.master.ID, draw.ID, req)
	assert.Equal(t, KindInvalidTransition, KindOf(err))
}

func TestDeleteDraw(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()

	open := seedDraw(t, env, now)
	require.NoError(t, env.draws.DeleteDraw(ctx, env.master.ID, open.ID))
	_, err := env.store.GetDraw(ctx, open.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	closed := seedDraw(t, env, now)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, closed.ID, models.DrawClosed, nil)
	require.NoError(t, err)
	err = env.draws.DeleteDraw(ctx, env.master.ID, closed.ID)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	cancelled := seedDraw(t, env, now)
	_, _, err = env.draws.ChangeStatus(ctx, env.master.ID, cancelled.ID, models.DrawCancelled, nil)
	require.NoError(t, err)
	require.NoError(t, env.draws.DeleteDraw(ctx, env.master.ID, cancelled.ID))
}

func TestListOpenByType(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }
	ctx := context.Background()

	accepting := seedDraw(t, env, now)

	// open but outside its betting window
	future := &models.Draw{
		LotteryType: "thai_gov",
		DrawDate:    now.Add(50 * time.Hour),
		OpenTime:    now.Add(24 * time.Hour),
		CloseTime:   now.Add(48 * time.Hour),
		Status:      models.DrawOpen,
		Settings:    defaultSettings(),
		CreatedBy:   env.master.ID,
	}
	require.NoError(t, env.store.CreateDraw(ctx, future))

	views, err := env.draws.ListOpenByType(ctx, []models.LotteryType{"thai_gov", "lao"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byType := map[models.LotteryType]OpenDrawView{}
	for _, v := range views {
		byType[v.LotteryType] = v
	}
	require.True(t, byType["thai_gov"].HasOpenDraw)
	assert.Equal(t, accepting.ID, byType["thai_gov"].Draw.ID)
	assert.False(t, byType["lao"].HasOpenDraw)
}

func TestCloseExpired(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	ctx := context.Background()

	live := seedDraw(t, env, now)
	expired := &models.Draw{
		LotteryType: "thai_gov",
		DrawDate:    now.Add(-time.Hour),
		OpenTime:    now.Add(-4 * time.Hour),
		CloseTime:   now.Add(-2 * time.Hour),
		Status:      models.DrawOpen,
		Settings:    defaultSettings(),
		CreatedBy:   env.master.ID,
	}
	require.NoError(t, env.store.CreateDraw(ctx, expired))

	env.draws.now = func() time.Time { return now }
	closed, err := env.draws.CloseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := env.store.GetDraw(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawClosed, got.Status)

	got, err = env.store.GetDraw(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawOpen, got.Status)

	// second sweep finds nothing
	closed, err = env.draws.CloseExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestBulkGenerate_Daily(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }

	result, err := env.draws.BulkGenerate(context.Background(), env.master.ID, BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"thai_gov", "lao"},
		Days:           7,
		Frequency:      FreqDaily,
		DrawHour:       16,
		DrawMinute:     0,
		OpenOffsetMin:  720,
		CloseOffsetMin: 30,
		Settings:       defaultSettings(),
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 14)
	assert.Empty(t, result.Errors)
	for _, d := range result.Created {
		assert.Equal(t, models.DrawOpen, d.Status)
		assert.True(t, d.OpenTime.Before(d.CloseTime))
		assert.True(t, d.CloseTime.Before(d.DrawDate))
	}
}

func TestBulkGenerate_SkipsExistingDates(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }
	ctx := context.Background()

	req := BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"thai_gov"},
		Days:           3,
		Frequency:      FreqDaily,
		DrawHour:       16,
		OpenOffsetMin:  720,
		CloseOffsetMin: 30,
		Settings:       defaultSettings(),
	}

	first, err := env.draws.BulkGenerate(ctx, env.master.ID, req)
	require.NoError(t, err)
	require.Len(t, first.Created, 3)

	second, err := env.draws.BulkGenerate(ctx, env.master.ID, req)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	require.Len(t, second.Errors, 3)
	for _, e := range second.Errors {
		assert.Equal(t, "draw already exists for this date", e.Reason)
	}
}

func TestBulkGenerate_ConcurrentBatchesNeverDoubleCreate(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }
	ctx := context.Background()

	req := BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"thai_gov"},
		Days:           3,
		Frequency:      FreqDaily,
		DrawHour:       16,
		OpenOffsetMin:  720,
		CloseOffsetMin: 30,
		Settings:       defaultSettings(),
	}

	var wg sync.WaitGroup
	results := make([]*BulkGenerateResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.draws.BulkGenerate(ctx, env.master.ID, req)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// one batch wins each date; the other reports it as a duplicate
	created := len(results[0].Created) + len(results[1].Created)
	dupes := len(results[0].Errors) + len(results[1].Errors)
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, dupes)

	open, err := env.store.ListDrawsByStatus(ctx, models.DrawOpen)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestBulkGenerate_BadOffsetsErrorPerItem(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }

	// close offset not smaller than open offset puts open_time after close_time
	result, err := env.draws.BulkGenerate(context.Background(), env.master.ID, BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"thai_gov"},
		Days:           2,
		Frequency:      FreqDaily,
		DrawHour:       16,
		OpenOffsetMin:  30,
		CloseOffsetMin: 720,
		Settings:       defaultSettings(),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Len(t, result.Errors, 2)
}

func TestBulkGenerate_WeeklyAndWeekdays(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.draws.now = func() time.Time { return now }
	ctx := context.Background()

	weekly, err := env.draws.BulkGenerate(ctx, env.master.ID, BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"thai_gov"},
		Days:           14,
		Frequency:      FreqWeekly,
		DrawHour:       16,
		OpenOffsetMin:  720,
		CloseOffsetMin: 30,
		Settings:       defaultSettings(),
	})
	require.NoError(t, err)
	// same weekday as the generation day occurs twice in 14 days
	require.Len(t, weekly.Created, 2)
	for _, d := range weekly.Created {
		assert.Equal(t, now.Weekday(), d.DrawDate.Weekday())
	}

	target := now.AddDate(0, 0, 1).Weekday()
	byWeekday, err := env.draws.BulkGenerate(ctx, env.master.ID, BulkGenerateRequest{
		LotteryTypes:   []models.LotteryType{"lao"},
		Days:           14,
		Frequency:      FreqWeekdays,
		Weekdays:       []time.Weekday{target},
		DrawHour:       16,
		OpenOffsetMin:  720,
		CloseOffsetMin: 30,
		Settings:       defaultSettings(),
	})
	require.NoError(t, err)
	require.Len(t, byWeekday.Created, 2)
	for _, d := range byWeekday.Created {
		assert.Equal(t, target, d.DrawDate.Weekday())
	}
}
