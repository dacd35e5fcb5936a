package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice-api/pkg/errors"
)

var testNow = time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)

func fixedClock(loc *time.Location) institutionClock {
	clock := newInstitutionClock(loc)
	clock.now = func() time.Time { return testNow }
	return clock
}

func testDay(offset int) *time.Time {
	d := time.Date(testNow.Year(), testNow.Month(), testNow.Day()+offset, 0, 0, 0, 0, time.UTC)
	return &d
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

func newStubCache() (*CacheService, *stubCacheRepo) {
	repo := &stubCacheRepo{}
	return NewCacheService(repo, nil, time.Minute, nil, true), repo
}

type fakeFinanceRepo struct {
	records      map[string]*models.StudentFinancialRecord
	overdue      []models.OverdueRow
	revenue      []models.RevenueRow
	transactions []models.TransactionSummary
	listErr      error
	setErr       error
	writes       int
	overdueAsOf  time.Time
	revenueCalls int
	listAllCalls int
}

func newFakeFinanceRepo(records ...models.StudentFinancialRecord) *fakeFinanceRepo {
	repo := &fakeFinanceRepo{records: make(map[string]*models.StudentFinancialRecord)}
	for i := range records {
		record := records[i]
		repo.records[resourceKey(record.StudentID, record.ClassID)] = &record
	}
	return repo
}

func (f *fakeFinanceRepo) sorted(filter models.StudentFinanceFilter) []models.StudentFinancialRecord {
	keys := make([]string, 0, len(f.records))
	for key := range f.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]models.StudentFinancialRecord, 0, len(keys))
	for _, key := range keys {
		record := f.records[key]
		if filter.StudentID != "" && record.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && record.ClassID != filter.ClassID {
			continue
		}
		if filter.Suspended != nil && record.IsSuspended != *filter.Suspended {
			continue
		}
		if filter.Cleared != nil && record.IsCleared != *filter.Cleared {
			continue
		}
		out = append(out, *record)
	}
	return out
}

func (f *fakeFinanceRepo) List(_ context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := f.sorted(filter)
	return all, len(all), nil
}

func (f *fakeFinanceRepo) ListAll(_ context.Context, filter models.StudentFinanceFilter) ([]models.StudentFinancialRecord, error) {
	f.listAllCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(filter), nil
}

func (f *fakeFinanceRepo) FindByStudentClass(_ context.Context, studentID, classID string) (*models.StudentFinancialRecord, error) {
	record, ok := f.records[resourceKey(studentID, classID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (f *fakeFinanceRepo) TransactionSummaries(_ context.Context, _ string) ([]models.TransactionSummary, error) {
	return f.transactions, nil
}

func (f *fakeFinanceRepo) Revenue(_ context.Context, filter models.RevenueFilter) ([]models.RevenueRow, error) {
	f.revenueCalls++
	out := make([]models.RevenueRow, 0, len(f.revenue))
	for _, row := range f.revenue {
		if filter.PaymentMethod != "" && row.PaymentMethod != filter.PaymentMethod {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeFinanceRepo) ListOverdue(_ context.Context, filter models.OverdueFilter, asOf time.Time) ([]models.OverdueRow, error) {
	f.overdueAsOf = asOf
	out := make([]models.OverdueRow, 0, len(f.overdue))
	for _, row := range f.overdue {
		if filter.ClassID != "" && row.ClassID != filter.ClassID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeFinanceRepo) SetSuspended(_ context.Context, studentID, classID string, suspended bool, _ time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	record, ok := f.records[resourceKey(studentID, classID)]
	if !ok {
		return sql.ErrNoRows
	}
	f.writes++
	record.IsSuspended = suspended
	return nil
}

func (f *fakeFinanceRepo) SetCleared(_ context.Context, studentID, classID string, cleared bool, at time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	record, ok := f.records[resourceKey(studentID, classID)]
	if !ok {
		return sql.ErrNoRows
	}
	f.writes++
	record.IsCleared = cleared
	if cleared {
		record.ClearedAt = &at
	} else {
		record.ClearedAt = nil
	}
	return nil
}

// feeRecord builds a fee record with sensible defaults for service tests.
func feeRecord(studentID, classID, balance string, due, end *time.Time) models.StudentFinancialRecord {
	program := "diploma"
	bal := amount(balance)
	total := amount("1500")
	return models.StudentFinancialRecord{
		StudentID:      studentID,
		ClassID:        classID,
		StudentName:    "Student " + studentID,
		BatchCode:      "BATCH-26A",
		ProgramType:    &program,
		TotalFee:       total,
		PaidAmount:     total.Sub(bal),
		Balance:        bal,
		NextPaymentDue: due,
		ClassEndDate:   end,
		CurrentBlock:   1,
	}
}
