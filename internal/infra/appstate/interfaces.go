package appstate

import "github.com/skillcoder/trafficwarden/internal/infra/pinger"

// pingerStatsGetter is an internal interface for reading pinger statistics
type pingerStatsGetter interface {
	GetAllStats() map[string]pinger.Statistics
}

// pingerRegistry is an internal interface for pinger registration
type pingerRegistry interface {
	Register(pinger pinger.Pinger) error
	pingerStatsGetter
}
