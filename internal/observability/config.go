package observability

import (
	"atsmatch/internal/config"
)

// SettingsFromConfig resolves observability settings. The build version is
// used when no service version is configured.
func SettingsFromConfig(cfg *config.Config, version string) Settings {
	if cfg == nil {
		return Settings{
			ServiceName:     "atsmatch",
			ServiceVersion:  version,
			ServiceInstance: "atsmatch-1",
			SampleRate:      1.0,
			Prometheus:      GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return Settings{
		ServiceName:        obs.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    obs.ServiceInstance,
		Enabled:            obs.Enabled,
		MetricsEnabled:     obs.Metrics.Enabled,
		ConsoleOutput:      obs.ConsoleOutput,
		PrettyPrint:        obs.Console.PrettyPrint,
		SampleRate:         obs.SampleRate,
		CollectionInterval: obs.Metrics.CollectionInterval,
		Prometheus:         GetPrometheusConfig(cfg),
		OTLP:               obs.OTLP,
	}
}
