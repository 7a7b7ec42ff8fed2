package reconciler

import "time"

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Ticker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt realTicker) Chan() <-chan time.Time { return rt.t.C }

func (rt realTicker) Stop() { rt.t.Stop() }
