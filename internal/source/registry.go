package source

import (
	"go.uber.org/zap"

	"github.com/gridscope/besstrack/internal/config"
	"github.com/gridscope/besstrack/internal/fetch"
)

// Build assembles the enabled sources in scrape order. Registries come
// first so their rows win the cross-source merge, then developer pages,
// then news.
func Build(client *fetch.Client, cfgs map[string]config.SourceConfig, logger *zap.Logger) []Source {
	type ctor func(*fetch.Client, config.SourceConfig, *zap.Logger) Source
	order := []struct {
		key  string
		make ctor
	}{
		{"uk_repd", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewREPD(c, sc, l) }},
		{"tec_register", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewTEC(c, sc, l) }},
		{"pins_nsip", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewPINS(c, sc, l) }},
		{"ecr_ukpn", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewECR(c, sc, l) }},
		{"edf_re_uk", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewEDF(c, sc, l) }},
		{"british_renewables", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source {
			return NewBritishRenewables(c, sc, l)
		}},
		{"root_power", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewRootPower(c, sc, l) }},
		{"fidra_energy", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewFidra(c, sc, l) }},
		{"sse_renewables", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewSSE(c, sc, l) }},
		{"eirgrid", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source { return NewEirGrid(c, sc, l) }},
		{"energy_storage_news", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source {
			return NewEnergyStorageNews(c, sc, l)
		}},
		{"solar_power_portal", func(c *fetch.Client, sc config.SourceConfig, l *zap.Logger) Source {
			return NewSolarPowerPortal(c, sc, l)
		}},
	}

	var sources []Source
	for _, entry := range order {
		sc, ok := cfgs[entry.key]
		if !ok || !sc.Enabled {
			logger.Debug("source disabled", zap.String("source", entry.key))
			continue
		}
		sources = append(sources, entry.make(client, sc, logger))
	}
	return sources
}
