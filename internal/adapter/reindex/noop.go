package reindex

import "context"

// NoopNotifier is used when search integration is disabled.
type NoopNotifier struct{}

func (NoopNotifier) FlagForReindex(context.Context, int64) error { return nil }
