package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc         func(ctx context.Context, opps []model.CreditOpportunity, summary *service.ReportSummary) error
	LastSummary       *service.ReportSummary
	LastOpportunities []model.CreditOpportunity
	WriteCalls        []WriteCall
	WriteCallCount    int
	mu                sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error         error
	Summary       *service.ReportSummary
	Opportunities []model.CreditOpportunity
}

var _ service.ReportWriter = (*MockWriter)(nil)

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, opps []model.CreditOpportunity, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastOpportunities = opps
	m.LastSummary = summary

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, opps, summary)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Opportunities: opps,
		Summary:       summary,
		Error:         err,
	})

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.LastOpportunities = nil
	m.LastSummary = nil
	m.WriteCalls = make([]WriteCall, 0)
}
