package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gestorhq/portal-api/internal/domain/model"
	"github.com/gestorhq/portal-api/internal/mocks"
	mockauth "github.com/gestorhq/portal-api/internal/mocks/auth"
)

func TestAuditService_Record_PropagatesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockSecurityEventStore(ctrl)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil, assert.AnError)

	svc := NewAuditService(AuditServiceOptions{Events: store})
	_, err := svc.Record(context.Background(), model.NewEvent(model.EventLogout, model.OutcomeSuccess))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAuditService_Record_NotifiesOnLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	principalID := "principal-1"
	stored := model.SecurityEvent{
		ID:          "evt-1",
		Type:        model.EventAccountLocked,
		Outcome:     model.OutcomeFailure,
		PrincipalID: &principalID,
		CreatedAt:   time.Now().UTC(),
	}

	store := mocks.NewMockSecurityEventStore(ctrl)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(&stored, nil)

	notified := make(chan model.SecurityEvent, 1)
	sink := mocks.NewMockAlertSink(ctrl)
	sink.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, evt model.SecurityEvent) error {
			notified <- evt
			return nil
		})

	svc := NewAuditService(AuditServiceOptions{Events: store, Alerts: sink})
	_, err := svc.Record(context.Background(), model.NewEvent(model.EventAccountLocked, model.OutcomeFailure))
	require.NoError(t, err)

	select {
	case evt := <-notified:
		assert.Equal(t, "evt-1", evt.ID)
	case <-time.After(time.Second):
		t.Fatal("alert was not delivered")
	}
}

func TestAuditService_Record_NoAlertForRoutineEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stored := model.SecurityEvent{ID: "evt-1", Type: model.EventLoginSuccess, Outcome: model.OutcomeSuccess}
	store := mocks.NewMockSecurityEventStore(ctrl)
	store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(&stored, nil)

	// No EXPECT on the sink: any Notify call fails the test.
	sink := mocks.NewMockAlertSink(ctrl)

	svc := NewAuditService(AuditServiceOptions{Events: store, Alerts: sink})
	_, err := svc.Record(context.Background(), model.NewEvent(model.EventLoginSuccess, model.OutcomeSuccess))
	require.NoError(t, err)
}

func TestAuditService_List_ReturnsTotal(t *testing.T) {
	events := mockauth.NewMemorySecurityEventStore()
	svc := NewAuditService(AuditServiceOptions{Events: events})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		evt := model.NewEvent(model.EventLoginFailed, model.OutcomeFailure)
		evt.IP = "203.0.113.9"
		_, err := svc.Record(ctx, evt)
		require.NoError(t, err)
	}
	evt := model.NewEvent(model.EventLogout, model.OutcomeSuccess)
	_, err := svc.Record(ctx, evt)
	require.NoError(t, err)

	got, total, err := svc.List(ctx, model.SecurityEventFilter{
		Types: []model.EventType{model.EventLoginFailed},
	}, model.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 3, total)
}

func TestAuditService_Overview(t *testing.T) {
	events := mockauth.NewMemorySecurityEventStore()
	svc := NewAuditService(AuditServiceOptions{
		Events:                events,
		SuspiciousIPThreshold: 3,
	})
	ctx := context.Background()

	principalID := "principal-1"
	email := "ana@acme.mx"
	for i := 0; i < 3; i++ {
		evt := model.NewEvent(model.EventLoginFailed, model.OutcomeFailure)
		evt.PrincipalID = &principalID
		evt.Email = &email
		evt.IP = "198.51.100.4"
		_, err := svc.Record(ctx, evt)
		require.NoError(t, err)
	}
	lock := model.NewEvent(model.EventAccountLocked, model.OutcomeFailure)
	lock.PrincipalID = &principalID
	lock.Email = &email
	lock.Detail = model.AccountLockedDetail{FailedCount: 3, Window: 15 * time.Minute}
	_, err := svc.Record(ctx, lock)
	require.NoError(t, err)

	// One failure from a different address stays under the threshold.
	other := model.NewEvent(model.EventLoginFailed, model.OutcomeFailure)
	other.IP = "192.0.2.10"
	_, err = svc.Record(ctx, other)
	require.NoError(t, err)

	overview, err := svc.Overview(ctx, 7)
	require.NoError(t, err)

	require.Len(t, overview.SuspiciousIPs, 1)
	assert.Equal(t, "198.51.100.4", overview.SuspiciousIPs[0].IP)
	assert.EqualValues(t, 3, overview.SuspiciousIPs[0].Failures)

	require.Len(t, overview.LockedAccounts, 1)
	assert.Equal(t, principalID, overview.LockedAccounts[0].PrincipalID)
	assert.Equal(t, 3, overview.LockedAccounts[0].FailedCount)

	assert.NotEmpty(t, overview.RecentByTypeDay)

	// One locked account plus one suspicious address yields two warnings.
	assert.Len(t, overview.Alerts, 2)
}

func TestAuditService_Stats_DefaultsWindow(t *testing.T) {
	events := mockauth.NewMemorySecurityEventStore()
	svc := NewAuditService(AuditServiceOptions{Events: events})
	ctx := context.Background()

	evt := model.NewEvent(model.EventLoginSuccess, model.OutcomeSuccess)
	_, err := svc.Record(ctx, evt)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
	require.Len(t, stats.Counts, 1)
	assert.Equal(t, model.EventLoginSuccess, stats.Counts[0].Type)
	assert.EqualValues(t, 1, stats.Counts[0].Count)
}
