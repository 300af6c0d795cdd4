/*
Package config loads rulekit settings from YAML or JSON files.

# Accessors

Config wraps a decoded document and extracts typed values with defaults.
Keys may be dotted paths into nested objects:

	cfg, err := config.FromFile("rulekit.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	dir := cfg.String("rules.dir", "rules")
	workers := cfg.Int("engine.max_concurrency", 0)

Accessors return the default when the key is missing or the value has the
wrong type. Durations accept strings ("250ms"), numbers of seconds, and
time.Duration.

# Engine settings

LoadSettings reads the rulekit section of a document into EngineSettings,
which builds the matching engine options, rule store, and watcher options:

	engine:
	  strict_comments: true
	  max_concurrency: 8
	  fail_fast: true
	rules:
	  dir: ./rules
	  reload_debounce: 200ms
	  resync_schedule: "@every 1m"
	store:
	  driver: sqlite
	  path: rules.db
	observability:
	  metrics: prometheus
	  tracing: true

	settings, err := config.LoadSettings(cfg)
	metrics := settings.NewMetrics(prometheus.DefaultRegisterer)
	engine := rulekit.New(settings.EngineOptions(logger, metrics)...)
*/
package config
