package metacache

import (
	"time"

	"go.uber.org/zap"
)

// startJanitor runs Expire every interval until stopJanitor is called.
func (c *Cache) startJanitor(interval time.Duration) {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	ticker := time.NewTicker(interval)

	go func() {
		defer close(c.done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := c.Expire(c.clock()); n > 0 {
					c.logger.Debug("janitor sweep", zap.Int("expired", n))
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// stopJanitor signals the janitor and waits for it to exit. It is a no-op
// when no janitor was started.
func (c *Cache) stopJanitor() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
}
