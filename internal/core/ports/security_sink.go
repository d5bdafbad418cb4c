package ports

import (
	"context"

	"github.com/mongoadmin/console/internal/core/domain"
)

// SecuritySink receives security events. Callers log a returned error and
// carry on; nothing in the core depends on delivery.
type SecuritySink interface {
	Record(ctx context.Context, event domain.SecurityEvent) error
}
