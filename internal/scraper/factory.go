package scraper

import "gigwatch/internal/config"

// NewRegistryFromConfig wires the known adapter implementations to
// whatever sources the config file enables. A configured source with
// no implementation here is simply not runnable.
func NewRegistryFromConfig(sources config.Sources) *Registry {
	r := NewRegistry()
	for _, sc := range sources.Sources {
		switch sc.ID {
		case "croft":
			r.Register(NewCroftAdapter(sc.BaseURL))
		case "exchange":
			r.Register(NewExchangeAdapter(sc.BaseURL))
		case "fleece":
			r.Register(NewFleeceAdapter(sc.BaseURL))
		}
	}
	return r
}
