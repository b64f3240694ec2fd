// SPDX-License-Identifier: Apache-2.0

// Package workers hosts the server's long-running background tasks: history
// TTL pruning, rotation candidate pruning, and database pool sampling. Each
// worker runs on a fixed interval, logs failures, and never aborts.
package workers

import "context"

// Worker is one long-running background task.
type Worker interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context)
}
