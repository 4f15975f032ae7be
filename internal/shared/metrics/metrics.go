package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	submissionsCommittedTotal  atomic.Uint64
	submissionsFailedTotal     atomic.Uint64
	artifactWriteFailuresTotal atomic.Uint64
	orphanedArtifactsTotal     atomic.Uint64
	chatFailuresTotal          atomic.Uint64
	indexUnavailableTotal      atomic.Uint64
	auditReceivedTotal         atomic.Uint64
	auditCompletedTotal        atomic.Uint64
	auditFailedTotal           atomic.Uint64
	auditDroppedTotal          atomic.Uint64

	commitDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000})
)

// IncSubmissionCommitted counts a submission whose metadata reached the index.
func IncSubmissionCommitted() {
	submissionsCommittedTotal.Add(1)
}

// IncSubmissionFailed counts a submission that was not recorded.
func IncSubmissionFailed() {
	submissionsFailedTotal.Add(1)
}

func IncArtifactWriteFailure() {
	artifactWriteFailuresTotal.Add(1)
}

// IncOrphanedArtifact counts an artifact left without its metadata record.
func IncOrphanedArtifact() {
	orphanedArtifactsTotal.Add(1)
}

// IncChatFailure counts a chat event that ended in the apology reply.
func IncChatFailure() {
	chatFailuresTotal.Add(1)
}

// IncIndexUnavailable counts query requests answered with 503.
func IncIndexUnavailable() {
	indexUnavailableTotal.Add(1)
}

func IncAuditReceived() {
	auditReceivedTotal.Add(1)
}

func IncAuditCompleted() {
	auditCompletedTotal.Add(1)
}

// IncAuditFailed counts queue messages left on the queue for redelivery.
func IncAuditFailed() {
	auditFailedTotal.Add(1)
}

// IncAuditDropped counts queue messages deleted without a successful audit.
func IncAuditDropped() {
	auditDroppedTotal.Add(1)
}

// ObserveCommitDurationMs records a pipeline commit duration in milliseconds.
func ObserveCommitDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	commitDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "submissions_committed_total", "Total submissions recorded", submissionsCommittedTotal.Load())
	writeCounter(&buf, "submissions_failed_total", "Total submissions that failed", submissionsFailedTotal.Load())
	writeCounter(&buf, "artifact_write_failures_total", "Total artifact store write failures", artifactWriteFailuresTotal.Load())
	writeCounter(&buf, "orphaned_artifacts_total", "Total artifacts written without metadata", orphanedArtifactsTotal.Load())
	writeCounter(&buf, "chat_failures_total", "Total chat events answered with an apology", chatFailuresTotal.Load())
	writeCounter(&buf, "index_unavailable_total", "Total query requests rejected because the index was unavailable", indexUnavailableTotal.Load())
	writeCounter(&buf, "audit_messages_received_total", "Total queue messages received by the auditor", auditReceivedTotal.Load())
	writeCounter(&buf, "audit_messages_completed_total", "Total queue messages audited", auditCompletedTotal.Load())
	writeCounter(&buf, "audit_messages_failed_total", "Total queue messages that failed auditing", auditFailedTotal.Load())
	writeCounter(&buf, "audit_messages_dropped_total", "Total unrecoverable queue messages deleted", auditDroppedTotal.Load())
	writeHistogram(&buf, "submission_commit_duration_ms", "Submission commit duration in milliseconds", commitDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
