package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	importJobsStarted   atomic.Int64
	importJobsCompleted atomic.Int64
	importJobsFailed    atomic.Int64
	importJobsCancelled atomic.Int64
	importRowsProcessed atomic.Int64
	importRowErrors     atomic.Int64
	webhooksDelivered   atomic.Int64
	webhooksFailed      atomic.Int64
	webhooksDropped     atomic.Int64
)

func JobStarted()   { importJobsStarted.Add(1) }
func JobCompleted() { importJobsCompleted.Add(1) }
func JobFailed()    { importJobsFailed.Add(1) }
func JobCancelled() { importJobsCancelled.Add(1) }

func RowsProcessed(n int) { importRowsProcessed.Add(int64(n)) }
func RowErrors(n int)     { importRowErrors.Add(int64(n)) }

func WebhookDelivered() { webhooksDelivered.Add(1) }
func WebhookFailed()    { webhooksFailed.Add(1) }
func WebhookDropped()   { webhooksDropped.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP importer_jobs_started_total Number of import jobs accepted for processing.\n")
	fmt.Fprintf(w, "# TYPE importer_jobs_started_total counter\n")
	fmt.Fprintf(w, "importer_jobs_started_total %d\n", importJobsStarted.Load())

	fmt.Fprintf(w, "# HELP importer_jobs_completed_total Number of import jobs that ran to completion.\n")
	fmt.Fprintf(w, "# TYPE importer_jobs_completed_total counter\n")
	fmt.Fprintf(w, "importer_jobs_completed_total %d\n", importJobsCompleted.Load())

	fmt.Fprintf(w, "# HELP importer_jobs_failed_total Number of import jobs that ended in failure.\n")
	fmt.Fprintf(w, "# TYPE importer_jobs_failed_total counter\n")
	fmt.Fprintf(w, "importer_jobs_failed_total %d\n", importJobsFailed.Load())

	fmt.Fprintf(w, "# HELP importer_jobs_cancelled_total Number of import jobs cancelled by request.\n")
	fmt.Fprintf(w, "# TYPE importer_jobs_cancelled_total counter\n")
	fmt.Fprintf(w, "importer_jobs_cancelled_total %d\n", importJobsCancelled.Load())

	fmt.Fprintf(w, "# HELP importer_rows_processed_total Number of rows consumed across all import jobs.\n")
	fmt.Fprintf(w, "# TYPE importer_rows_processed_total counter\n")
	fmt.Fprintf(w, "importer_rows_processed_total %d\n", importRowsProcessed.Load())

	fmt.Fprintf(w, "# HELP importer_row_errors_total Number of rows rejected with a row-level error.\n")
	fmt.Fprintf(w, "# TYPE importer_row_errors_total counter\n")
	fmt.Fprintf(w, "importer_row_errors_total %d\n", importRowErrors.Load())

	fmt.Fprintf(w, "# HELP webhook_deliveries_total Number of webhook deliveries that succeeded.\n")
	fmt.Fprintf(w, "# TYPE webhook_deliveries_total counter\n")
	fmt.Fprintf(w, "webhook_deliveries_total %d\n", webhooksDelivered.Load())

	fmt.Fprintf(w, "# HELP webhook_failures_total Number of webhook deliveries that failed.\n")
	fmt.Fprintf(w, "# TYPE webhook_failures_total counter\n")
	fmt.Fprintf(w, "webhook_failures_total %d\n", webhooksFailed.Load())

	fmt.Fprintf(w, "# HELP webhook_dropped_total Number of webhook events dropped because the dispatch queue was full.\n")
	fmt.Fprintf(w, "# TYPE webhook_dropped_total counter\n")
	fmt.Fprintf(w, "webhook_dropped_total %d\n", webhooksDropped.Load())
}
