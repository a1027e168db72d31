// Package config loads the per-repository settings stored in .intrack/.
//
// Settings come from .intrack/config.yaml, which is committed and shared,
// and are overridden by INTRACK_* environment variables. The replica id is
// kept apart in .intrack/replica, which is local to each clone.
package config
