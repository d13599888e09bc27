// Copyright (c) 2025 Justin Cranford

package audit

import (
	"context"

	"github.com/CohesiumAI/openclaw-sub001/internal/shared/magic"
)

// These are package-level (not struct fields) so tests can shrink the flush
// interval/threshold without plumbing a config object through every
// constructor; production code never touches them.
var (
	auditFlushInterval   = magic.AuditFlushInterval
	auditFlushBatchSize  = magic.AuditFlushBatchSize
	auditRotateSizeBytes = int64(magic.AuditRotateSizeBytes)
)

func bgCtx() context.Context { return context.Background() }
