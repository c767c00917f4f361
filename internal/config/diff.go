package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	CacheTTLChanged bool
	NewCacheTTL     int

	TokenBudgetChanged bool
	NewTokenBudget     int

	MaxToolLoopIterationsChanged bool
	NewMaxToolLoopIterations     int
}

// Changed reports whether Diff found anything worth reloading.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CacheTTLChanged || d.TokenBudgetChanged || d.MaxToolLoopIterationsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart — a change to
// server.listen_addr, providers, or store.postgres_dsn requires a process
// restart and is intentionally not reported here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Cache.TTLSeconds != new.Cache.TTLSeconds {
		d.CacheTTLChanged = true
		d.NewCacheTTL = new.Cache.TTLSeconds
	}
	if old.Workspace.TokenBudget != new.Workspace.TokenBudget {
		d.TokenBudgetChanged = true
		d.NewTokenBudget = new.Workspace.TokenBudget
	}
	if old.Workspace.MaxToolLoopIterations != new.Workspace.MaxToolLoopIterations {
		d.MaxToolLoopIterationsChanged = true
		d.NewMaxToolLoopIterations = new.Workspace.MaxToolLoopIterations
	}

	return d
}
