package backend

import (
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// StartSweeper periodically deletes expired pending reservations so an
// abandoned hold can never block a name past its TTL.
func (b *backend) StartSweeper(done <-chan struct{}) {
	logrus.Infof("starting pending-reservation sweeper. Sweep interval: %v, hold TTL: %v",
		b.cfg.SweepInterval, b.cfg.PendingTTL)
	wait.JitterUntil(b.sweep, b.cfg.SweepInterval, .002, true, done)
}

func (b *backend) sweep() {
	purged, err := b.db.PurgeExpiredPending(time.Now())
	if err != nil {
		logrus.Errorf("problem purging expired pending reservations: %v", err)
		return
	}
	if purged > 0 {
		logrus.Infof("Pending reservations purged from DB: %v", purged)
	}
}
