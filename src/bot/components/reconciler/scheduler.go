package reconciler

import (
	"context"
	"log"
	"time"
)

// StartPeriodic drives reconciliation passes on a fixed interval until the
// context is cancelled. Each pass runs synchronously in this loop: a tick
// that fires while a pass is still running is dropped by the ticker, so two
// passes never overlap.
func StartPeriodic(ctx context.Context, r *Reconciler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.RunPass(ctx); err != nil {
		log.Printf("reconciler: pass failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping reconciliation loop")
			return
		case <-ticker.C:
			if err := r.RunPass(ctx); err != nil {
				log.Printf("reconciler: pass failed: %v", err)
			}
		}
	}
}
