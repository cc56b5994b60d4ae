/*
Package log provides structured logging for cronfleet using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Usage

Initializing the logger:

	import "github.com/cuemby/cronfleet/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	engineLog := log.WithComponent("engine")
	engineLog.Info().Str("fingerprint", fp.String()).Msg("task created")
	engineLog.Warn().Uint64("slot", slot).Msg("missed dispatch turn")

# Log Levels

Debug is for development and troubleshooting, Info is the default
production level, Warn flags situations worth attention without being
failures (a missed heartbeat turn, a failed outbound delivery), and
Error is for operations that did not complete. Call sites
use the zerolog.Logger returned by WithComponent directly
(engineLog.Info()/.Warn()/.Error()) rather than a package-level helper.

# Design Patterns

A single package-level Logger instance is initialized once via
log.Init() and is safe for concurrent use. WithComponent derives a
child logger carrying one extra field rather than repeating it on every
call site; pkg/engine and pkg/api both hold one for the lifetime of the
process.

# Security

Never log attached deposits, private cadence arguments, or webhook
payloads verbatim — task Arguments is opaque caller data and is not
logged at all.
*/
package log
