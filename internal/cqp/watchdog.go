package cqp

import (
	"time"

	"cqb/internal/errors"
)

// watchdog polls the in-flight call at a fixed interval and hard-kills the
// engine when the execution ceiling elapses. There is no graceful
// mid-request cancellation: a pathological pattern can hang the engine
// indefinitely, and killing it is the only way out. The kill is terminal
// for the whole client.
func (c *Client) watchdog() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			elapsed, busy := c.busyFor()
			if !busy || elapsed <= c.timeout {
				continue
			}
			c.logger.Error("watchdog killing engine after timeout", map[string]interface{}{
				"elapsed": elapsed.String(),
				"ceiling": c.timeout.String(),
			})
			c.markDead(errors.WatchdogKill,
				"watchdog killed the engine after "+elapsed.Truncate(time.Second).String())
			c.kill()
			return
		}
	}
}
