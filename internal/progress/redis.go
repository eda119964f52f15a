// Package progress implements driver.ProgressReporter over Redis pub/sub,
// grounded in the worker_task_updates channel pattern the teacher uses to
// stream backtest progress out of a background worker.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Update is one progress message published to a run's channel.
type Update struct {
	RunID          string    `json:"run_id"`
	DaysCompleted  int       `json:"days_completed"`
	TotalDays      int       `json:"total_days"`
	CurrentDate    time.Time `json:"current_date"`
	PercentComplete float64  `json:"percent_complete"`
}

func channelName(runID string) string {
	return fmt.Sprintf("simcore:run:%s:progress", runID)
}

// RedisReporter implements driver.ProgressReporter by publishing Update
// messages to a per-run Redis channel. Report never blocks the simulation
// loop on a slow or absent subscriber: publish failures are swallowed,
// matching the "optional" nature of driver.ProgressReporter.
type RedisReporter struct {
	client *redis.Client
	runID  string
	ctx    context.Context
}

// NewRedisReporter returns a RedisReporter publishing under runID.
func NewRedisReporter(ctx context.Context, client *redis.Client, runID string) *RedisReporter {
	return &RedisReporter{client: client, runID: runID, ctx: ctx}
}

// Report implements driver.ProgressReporter.
func (r *RedisReporter) Report(daysCompleted, totalDays int, currentDate time.Time) {
	pct := 0.0
	if totalDays > 0 {
		pct = float64(daysCompleted) / float64(totalDays) * 100
	}
	update := Update{
		RunID:           r.runID,
		DaysCompleted:   daysCompleted,
		TotalDays:       totalDays,
		CurrentDate:     currentDate,
		PercentComplete: pct,
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	r.client.Publish(r.ctx, channelName(r.runID), payload)
}

// Watch subscribes to runID's progress channel and invokes onUpdate for
// each message received until ctx is cancelled or the channel is closed.
// Host CLIs use this to render a progress bar for a run started elsewhere.
func Watch(ctx context.Context, client *redis.Client, runID string, onUpdate func(Update)) error {
	pubsub := client.Subscribe(ctx, channelName(runID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update Update
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			onUpdate(update)
		}
	}
}
