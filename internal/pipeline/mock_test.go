package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/chapter-report/internal/model"
)

// --- Event Source Mock ---

type mockEventSource struct {
	mock.Mock
}

func (m *mockEventSource) FetchEvents(ctx context.Context, chapterID string, period model.Period) ([]model.RawEvent, error) {
	args := m.Called(ctx, chapterID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawEvent), args.Error(1)
}

// --- Roster Source Mock ---

type mockRosterSource struct {
	mock.Mock
}

func (m *mockRosterSource) FetchActiveMembers(ctx context.Context, chapterID string, period model.Period) ([]model.RosterEntry, error) {
	args := m.Called(ctx, chapterID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RosterEntry), args.Error(1)
}
