package pricing

import (
	"context"

	"github.com/robfig/cron/v3"

	"subnet-rentd/core/logging"
)

// StartRefreshWorker fetches the day's rate once at startup and then once
// per day just after midnight, so Price usually finds the rate cached.
func (o *Oracle) StartRefreshWorker(ctx context.Context) {
	o.refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc("@midnight", func() { o.refresh(ctx) }); err != nil {
		logging.Logger.Panic("failed to schedule the rate refresh: " + err.Error())
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}
