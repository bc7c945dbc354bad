package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	AssessmentRequestKeyPrefix = "req:assessment:%d"
	SectionRequestKeyPrefix    = "req:section:%d"
	ReportRequestKeyPrefix     = "req:report:%d"
	ChecklistKeyPrefix         = "checklist:%d"
)

const (
	// RequestTTL is deliberately short: a request's interesting state changes
	// exactly once, at review time, and invalidation covers that.
	RequestTTL   = 5 * time.Minute
	ChecklistTTL = 2 * time.Minute
)

func AssessmentRequestKey(id uint) string {
	return fmt.Sprintf(AssessmentRequestKeyPrefix, id)
}

func SectionRequestKey(id uint) string {
	return fmt.Sprintf(SectionRequestKeyPrefix, id)
}

func ReportRequestKey(id uint) string {
	return fmt.Sprintf(ReportRequestKeyPrefix, id)
}

func ChecklistKey(locationID uint) string {
	return fmt.Sprintf(ChecklistKeyPrefix, locationID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateAssessmentRequest(ctx context.Context, id uint) {
	Invalidate(ctx, AssessmentRequestKey(id))
}

func InvalidateSectionRequest(ctx context.Context, id uint) {
	Invalidate(ctx, SectionRequestKey(id))
}

func InvalidateReportRequest(ctx context.Context, id uint) {
	Invalidate(ctx, ReportRequestKey(id))
}

func InvalidateChecklist(ctx context.Context, locationID uint) {
	Invalidate(ctx, ChecklistKey(locationID))
}
