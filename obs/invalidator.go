package obs

import (
	"go.uber.org/zap"

	"github.com/warp/timber-ledger/timber"
)

// LogInvalidator emits every post-commit invalidation signal as a debug
// line and a counter increment. Stands in for a cache bus until one is
// attached.
type LogInvalidator struct {
	Log *zap.Logger
}

var _ timber.Invalidator = (*LogInvalidator)(nil)

func NewLogInvalidator(log *zap.Logger) *LogInvalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogInvalidator{Log: log}
}

func (li *LogInvalidator) Invalidate(kind timber.EntityKind, id string) {
	Invalidation(string(kind))
	li.Log.Debug("invalidate",
		zap.String("kind", string(kind)),
		zap.String("id", id),
	)
}
