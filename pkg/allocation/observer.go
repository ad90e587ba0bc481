package allocation

import "time"

// Observer is notified of per-demand outcomes and run completion. Implementations must be cheap, they are
// called from inside the allocation loop.
type Observer interface {
	DemandPlaced(demand uint64, room uint64)
	DemandUnplaced(demand uint64, reason UnplacedReason)
	RunCompleted(report *Report, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) DemandPlaced(uint64, uint64) {}
func (nopObserver) DemandUnplaced(uint64, UnplacedReason) {}
func (nopObserver) RunCompleted(*Report, time.Duration) {}
