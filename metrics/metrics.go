package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	prometheus.Collector
}

type Metrics struct {
	// MainMessages counts PRIVMSGs received on the main network.
	MainMessages Observer
	// RelayMessages counts PRIVMSGs received on the relay network.
	RelayMessages Observer
	// Commands counts resolved commands, labeled by source kind.
	Commands Observer
	// Forwarded counts commands forwarded to relay peers, labeled by peer.
	Forwarded Observer
	// Returned counts relay messages, labeled by outcome.
	Returned Observer
	// WatchlistFailures counts failed watchlist saves.
	WatchlistFailures Observer
	// Dropped counts outbound lines dropped because a network's send queue
	// was full or its connection had given up, labeled by network.
	Dropped Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MainMessages,
		m.RelayMessages,
		m.Commands,
		m.Forwarded,
		m.Returned,
		m.WatchlistFailures,
		m.Dropped,
	}
}
