package config

// ConfigDiff describes what changed between two loaded configs, split into
// what can be applied to a running client and what only takes effect on the
// next run.
type ConfigDiff struct {
	// LogLevelChanged reports a log.level change; NewLogLevel carries the
	// new value. Applied live through the process's slog level.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RequiresRestart lists config sections whose new values cannot be
	// applied to the running client: the active session, audio devices and
	// the observability server are built once at startup.
	RequiresRestart []string
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || len(d.RequiresRestart) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}
	if old.Server != new.Server {
		d.RequiresRestart = append(d.RequiresRestart, "server")
	}
	if old.Audio != new.Audio {
		d.RequiresRestart = append(d.RequiresRestart, "audio")
	}
	if old.Observe != new.Observe {
		d.RequiresRestart = append(d.RequiresRestart, "observe")
	}
	return d
}
