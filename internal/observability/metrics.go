package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsSubmitted counts change requests accepted into pending state,
	// by resource kind and action.
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warelic_change_requests_submitted_total",
		Help: "Total change requests submitted, by resource kind and action",
	}, []string{"kind", "action"})

	// RequestsReviewed counts reviewer decisions, by resource kind and verdict.
	RequestsReviewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warelic_change_requests_reviewed_total",
		Help: "Total change requests reviewed, by resource kind and verdict",
	}, []string{"kind", "verdict"})

	// StagedBytes counts ciphertext bytes written to the staging area.
	StagedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warelic_staged_bytes_total",
		Help: "Total ciphertext bytes written to the staging area, by resource kind",
	}, []string{"kind"})

	// DocumentsPromoted counts staged documents promoted to canonical storage.
	DocumentsPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warelic_documents_promoted_total",
		Help: "Total staged documents promoted to canonical storage",
	})

	// MovesReconciled counts promotions finished by the startup sweep.
	MovesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warelic_document_moves_reconciled_total",
		Help: "Total interrupted document promotions finished at startup",
	})

	// SectionsArchived counts checklist sections copied to history before overwrite.
	SectionsArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warelic_checklist_sections_archived_total",
		Help: "Total checklist sections archived to history before overwrite, by section type",
	}, []string{"section_type"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warelic_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)
