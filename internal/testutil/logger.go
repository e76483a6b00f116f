package testutil

import "log/slog"

// DiscardLogger returns a logger whose output goes nowhere, for tests that
// construct stores or handlers directly and don't want log noise. It returns
// the same type as log.NewNop(); having a copy here keeps test helpers from
// depending on internal/log.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
