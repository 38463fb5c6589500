// Package poller drives the periodic meter readout.
package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
	"github.com/matthijsvisser/kamstrup-402-mqtt/state"
)

// Run reads the configured parameters and hands the result to
// telemetry, forever, every poll interval. The first readout happens
// immediately so a dead serial port shows up at start and not
// interval minutes later.
func Run(ctx context.Context) {
	g := state.GetGlobal(ctx)
	runInterval(ctx, time.Duration(g.Config.Kamstrup.PollInterval)*time.Minute)
}

func runInterval(ctx context.Context, interval time.Duration) {
	g := state.GetGlobal(ctx)
	g.Alive.Add(1)
	defer g.Alive.Done()

	g.Log.Infof("poller: interval=%v parameters=%v", interval, g.Config.Kamstrup.Parameters)

	pollOnce(ctx)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	stopCh := g.Alive.StopChan()
	for {
		select {
		case <-stopCh:
			return
		case <-tick.C:
			pollOnce(ctx)
		}
	}
}

func pollOnce(ctx context.Context) {
	g := state.GetGlobal(ctx)

	rs, err := g.Meter().ReadNamed(g.Alive.StopChan(), g.Config.Kamstrup.Parameters)
	if err == kamstrup.ErrStopped {
		return
	}
	if se, ok := err.(*kamstrup.SessionError); ok {
		g.Log.Errorf("poller: %v", se)
		g.Tele.PollFailed(se.Reason, se.Attempts)
		return
	}
	if err != nil {
		// unknown parameter names land here, retry will not heal that
		g.Error(err, "poller")
		return
	}

	b, _ := json.Marshal(rs)
	g.Log.Infof("poller: %s", b)
	g.Tele.Readings(rs)
}
