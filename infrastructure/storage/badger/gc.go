package badger

import (
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// valueLogGC periodically reclaims value log space until stopped.
type valueLogGC struct {
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func startGC(db *badger.DB, interval time.Duration, discardRatio float64) *valueLogGC {
	gc := &valueLogGC{stop: make(chan struct{})}
	if interval <= 0 {
		return gc
	}

	gc.wg.Add(1)
	go func() {
		defer gc.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-gc.stop:
				return
			case <-ticker.C:
				// Rewrite files until there is nothing left to collect.
				for db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
	return gc
}

// Stop ends the GC loop and waits for it to exit. It is safe to call twice.
func (gc *valueLogGC) Stop() {
	gc.once.Do(func() { close(gc.stop) })
	gc.wg.Wait()
}
