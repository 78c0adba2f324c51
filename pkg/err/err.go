package errprocess

import (
	"fmt"

	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// Wrap log cause and return it classified under kind, so callers can errors.Is(err, kind)
func Wrap(kind error, op string, cause error) error {
	logger.Log.Error(op, zap.String("kind", kind.Error()), zap.Error(cause))
	return fmt.Errorf("%s: %w: %v", op, kind, cause)
}
