package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice-api/internal/dto"
	"github.com/noah-isme/sma-backoffice-api/internal/models"
	"github.com/noah-isme/sma-backoffice-api/internal/rules"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

const financeCachePattern = "finance:*"

// institutionClock yields "now" in the institution's timezone so calendar-day
// comparisons match what staff see on their wall clock.
type institutionClock struct {
	loc *time.Location
	now func() time.Time
}

func newInstitutionClock(loc *time.Location) institutionClock {
	if loc == nil {
		loc = time.UTC
	}
	return institutionClock{loc: loc, now: time.Now}
}

func (c institutionClock) Now() time.Time {
	return c.now().In(c.loc)
}

// ruleError maps engine sentinels onto API errors.
func ruleError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rules.ErrNotDeterminable):
		return appErrors.Wrap(err, appErrors.ErrNotDeterminable.Code, appErrors.ErrNotDeterminable.Status, message)
	case errors.Is(err, rules.ErrInvalidInput):
		return appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func lookupError(err error, notFound, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failed)
}

func paymentInput(record models.StudentFinancialRecord) rules.PaymentInput {
	return rules.PaymentInput{
		TotalFee:       record.TotalFee,
		PaidAmount:     record.PaidAmount,
		Balance:        record.Balance,
		NextPaymentDue: record.NextPaymentDue,
		Suspended:      record.IsSuspended,
	}
}

func clearanceInput(record models.StudentFinancialRecord) rules.ClearanceInput {
	return rules.ClearanceInput{
		Balance:      record.Balance,
		Cleared:      record.IsCleared,
		ClassEndDate: record.ClassEndDate,
	}
}

// financeView labels a record. A record whose status cannot be derived is
// labelled instead of failing the listing it belongs to.
func financeView(record models.StudentFinancialRecord, now time.Time) dto.StudentFinanceView {
	view := dto.StudentFinanceView{StudentFinancialRecord: record}

	status, err := rules.ClassifyPayment(paymentInput(record), now)
	if err != nil {
		view.PaymentStatus = dto.StatusNotDeterminable
		view.StatusError = err.Error()
	} else {
		view.PaymentStatus = string(status)
		if status == rules.PaymentOverdue {
			view.DaysOverdue = rules.DaysBetween(*record.NextPaymentDue, now)
		}
	}

	state, err := rules.EvaluateClearance(clearanceInput(record), now)
	if err != nil {
		view.ClearanceState = dto.StatusNotDeterminable
		if view.StatusError == "" {
			view.StatusError = err.Error()
		}
	} else {
		view.ClearanceState = string(state)
	}

	progress, err := rules.BlockProgress(rules.BlockFlags{
		RegistrationPaid: record.RegistrationPaid,
		Block1Paid:       record.Block1Paid,
		Block2Paid:       record.Block2Paid,
		CurrentBlock:     record.CurrentBlock,
	})
	if err == nil {
		view.Installments = &progress
	}
	return view
}

func resourceKey(studentID, classID string) string {
	return studentID + "/" + classID
}

// auditTrail writes audit entries for finance mutations. Failures are logged and
// never fail the mutation that triggered them.
type auditTrail struct {
	writer AuditWriter
	logger *zap.Logger
}

func (a auditTrail) record(ctx context.Context, actor models.Actor, action, resourceID string, oldValues, newValues interface{}) {
	if a.writer == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "student_payments",
		ResourceID: &resourceID,
		OldValues:  marshalAudit(oldValues),
		NewValues:  marshalAudit(newValues),
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if err := a.writer.Create(ctx, entry); err != nil {
		a.logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func marshalAudit(values interface{}) []byte {
	if values == nil {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}

// bulkFailure converts an item error into its reported form.
func bulkFailure(ref models.StudentClassRef, err error) dto.BulkFailure {
	appErr := appErrors.FromError(err)
	return dto.BulkFailure{
		StudentID: ref.StudentID,
		ClassID:   ref.ClassID,
		Code:      appErr.Code,
		Reason:    appErr.Message,
	}
}

// reportCache wraps CacheService for computed reports. Cache faults degrade to a
// recompute and are only logged.
type reportCache struct {
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

func (r reportCache) get(ctx context.Context, key string, dest interface{}) bool {
	if r.cache == nil {
		return false
	}
	hit, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (r reportCache) set(ctx context.Context, key string, value interface{}) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
		r.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r reportCache) invalidate(ctx context.Context, pattern string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, pattern); err != nil {
		r.logger.Warn("report cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
