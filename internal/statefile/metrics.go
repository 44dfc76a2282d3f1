package statefile

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

var (
	shardLoads       = metrics.NewCounter("sfdb_shard_loads_total")
	shardWrites      = metrics.NewCounter("sfdb_shard_writes_total")
	shardWriteErrors = metrics.NewCounter("sfdb_shard_write_errors_total")
	unitsReconciled  = metrics.NewCounter("sfdb_units_reconciled_total")
	deferredSaves    = metrics.NewCounter("sfdb_deferred_saves_skipped_total")
)

// shardRejections returns the rejection counter for the reason of err.
func shardRejections(err error) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`sfdb_shard_rejections_total{reason=%q}`, rejectionReason(err)))
}
