package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

type fakeInstanceStore struct {
	instances map[string]*db.WhatsAppInstance
}

func (f *fakeInstanceStore) GetInstanceByID(id string) (*db.WhatsAppInstance, error) {
	if i, ok := f.instances[id]; ok {
		return i, nil
	}
	return nil, db.ErrInstanceNotFound
}

type fakeMessageStore struct {
	lastMinute   int
	lastHour     int
	last24h      int
	last7Days    int
	statusCounts map[db.MessageStatus]int
	lastSentAt   *time.Time
}

func (f *fakeMessageStore) CountMessagesSince(instanceID string, since time.Time) (int, error) {
	window := time.Since(since)
	switch {
	case window <= 2*time.Minute:
		return f.lastMinute, nil
	case window <= 2*time.Hour:
		return f.lastHour, nil
	case window <= 48*time.Hour:
		return f.last24h, nil
	default:
		return f.last7Days, nil
	}
}

func (f *fakeMessageStore) CountMessagesByStatusSince(instanceID string, since time.Time) (map[db.MessageStatus]int, error) {
	if f.statusCounts == nil {
		return map[db.MessageStatus]int{}, nil
	}
	return f.statusCounts, nil
}

func (f *fakeMessageStore) LastMessageSentAt(instanceID string) (*time.Time, error) {
	return f.lastSentAt, nil
}

type fakeSnapshotStore struct {
	snapshots map[string]*db.HealthMetricsSnapshot
	created   int
	updated   int
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]*db.HealthMetricsSnapshot)}
}

func (f *fakeSnapshotStore) GetSnapshotByInstance(instanceID string) (*db.HealthMetricsSnapshot, error) {
	if s, ok := f.snapshots[instanceID]; ok {
		return s, nil
	}
	return nil, db.ErrSnapshotNotFound
}

func (f *fakeSnapshotStore) CreateSnapshot(s *db.HealthMetricsSnapshot) error {
	f.snapshots[s.InstanceID] = s
	f.created++
	return nil
}

func (f *fakeSnapshotStore) UpdateSnapshot(s *db.HealthMetricsSnapshot) error {
	f.snapshots[s.InstanceID] = s
	f.updated++
	return nil
}

func connectedInstance(id string, connectedDaysAgo int) *db.WhatsAppInstance {
	connectedAt := time.Now().Add(-time.Duration(connectedDaysAgo) * 24 * time.Hour)
	return &db.WhatsAppInstance{
		ID:          id,
		TenantID:    "tenant-1",
		Name:        "loja-principal",
		Channel:     db.ChannelEvolution,
		Status:      db.InstanceConnected,
		ConnectedAt: &connectedAt,
	}
}

func newTestService(instance *db.WhatsAppInstance, messages *fakeMessageStore, snapshots *fakeSnapshotStore) *Service {
	instances := &fakeInstanceStore{instances: map[string]*db.WhatsAppInstance{}}
	if instance != nil {
		instances.instances[instance.ID] = instance
	}
	return NewService(instances, messages, snapshots, zap.NewNop())
}

func TestCalculateAndUpdateMetrics_InstanceNotFound(t *testing.T) {
	svc := newTestService(nil, &fakeMessageStore{}, newFakeSnapshotStore())

	_, err := svc.CalculateAndUpdateMetrics("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrInstanceNotFound))
}

func TestCalculateAndUpdateMetrics_LazySnapshotCreation(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	svc := newTestService(connectedInstance("inst-1", 60), &fakeMessageStore{}, snapshots)

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.Equal(t, 1, snapshots.created)
	assert.Equal(t, db.TierUnverified, snapshot.CurrentTier)
	assert.Equal(t, 250, snapshot.DailyLimit)
	assert.Equal(t, "tenant-1", snapshot.TenantID)
}

func TestCalculateAndUpdateMetrics_HealthyInstance(t *testing.T) {
	// Entregas perfeitas, volume confortável, fora do warm-up
	messages := &fakeMessageStore{
		lastMinute: 1,
		lastHour:   10,
		last24h:    50,
		last7Days:  100,
		statusCounts: map[db.MessageStatus]int{
			db.MessageRead: 100,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 60), messages, newFakeSnapshotStore())

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.Equal(t, 100, snapshot.HealthScore)
	assert.Equal(t, db.QualityHigh, snapshot.QualityRating)
	assert.Empty(t, snapshot.Alerts)
	assert.False(t, snapshot.HasAlerts)
	assert.False(t, snapshot.IsWarmingUp)
	require.NotNil(t, snapshot.DaysSinceConnection)
	assert.Equal(t, 60, *snapshot.DaysSinceConnection)

	assert.Equal(t, 1, snapshot.MessagesSentLastMinute)
	assert.Equal(t, 10, snapshot.MessagesSentLastHour)
	assert.Equal(t, 50, snapshot.MessagesSentLast24h)
	assert.Equal(t, 100, snapshot.MessagesSentLast7Days)
	assert.Equal(t, 100, snapshot.MessagesDelivered)
	assert.Equal(t, 100, snapshot.MessagesRead)
	assert.Equal(t, 40, snapshot.UserResponsesReceived)
}

func TestCalculateAndUpdateMetrics_LowDeliveryRate(t *testing.T) {
	// 60% de entrega, falhas zeradas, taxa de resposta neutra:
	// penalidade (95-60)*0.5 + 10 + 15 = 42.5 -> score 58, rating low
	messages := &fakeMessageStore{
		last24h:   50,
		last7Days: 100,
		statusCounts: map[db.MessageStatus]int{
			db.MessageRead: 60,
			db.MessageSent: 40,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 60), messages, newFakeSnapshotStore())

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.Equal(t, 58, snapshot.HealthScore)
	assert.Equal(t, db.QualityLow, snapshot.QualityRating)
}

func TestCalculateAndUpdateMetrics_HighFailureRateClampsToZero(t *testing.T) {
	// 30% de falha acumula penalidades de entrega e falha bem acima de
	// 100 pontos; o score tem que ficar preso em 0
	messages := &fakeMessageStore{
		last24h:   50,
		last7Days: 100,
		statusCounts: map[db.MessageStatus]int{
			db.MessageRead:   70,
			db.MessageFailed: 30,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 60), messages, newFakeSnapshotStore())

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.Equal(t, 0, snapshot.HealthScore)
	assert.Equal(t, db.QualityFlagged, snapshot.QualityRating)

	types := alertTypes(snapshot.Alerts)
	assert.Contains(t, types, db.AlertQualityLow)
	assert.Contains(t, types, db.AlertTooManyFailures)
	assert.Equal(t, db.SeverityCritical, findAlert(snapshot.Alerts, db.AlertTooManyFailures).Severity)
}

func TestCalculateAndUpdateMetrics_RateLimitAlert(t *testing.T) {
	tests := []struct {
		name         string
		last24h      int
		dailyLimit   int
		tier         db.VolumeTier
		wantSeverity db.AlertSeverity
	}{
		{
			name:         "96 percent usage is critical",
			last24h:      960,
			dailyLimit:   1000,
			tier:         db.Tier1,
			wantSeverity: db.SeverityCritical,
		},
		{
			name:         "100 percent usage is critical",
			last24h:      1000,
			dailyLimit:   1000,
			tier:         db.Tier1,
			wantSeverity: db.SeverityCritical,
		},
		{
			name:         "85 percent usage is warning",
			last24h:      850,
			dailyLimit:   1000,
			tier:         db.Tier1,
			wantSeverity: db.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := &fakeMessageStore{
				last24h:   tt.last24h,
				last7Days: tt.last24h,
				statusCounts: map[db.MessageStatus]int{
					db.MessageRead: tt.last24h,
				},
			}
			snapshots := newFakeSnapshotStore()
			snapshots.snapshots["inst-1"] = &db.HealthMetricsSnapshot{
				ID:          "snap-1",
				InstanceID:  "inst-1",
				TenantID:    "tenant-1",
				HealthScore: 100,
				CurrentTier: tt.tier,
				DailyLimit:  tt.dailyLimit,
			}
			svc := newTestService(connectedInstance("inst-1", 60), messages, snapshots)

			snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
			require.NoError(t, err)

			alert := findAlert(snapshot.Alerts, db.AlertRateLimit)
			require.NotNil(t, alert)
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			assert.True(t, snapshot.HasAlerts)
		})
	}
}

func TestCalculateAndUpdateMetrics_WarmupExceeded(t *testing.T) {
	messages := &fakeMessageStore{
		last24h:   60,
		last7Days: 80,
		statusCounts: map[db.MessageStatus]int{
			db.MessageRead: 80,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 5), messages, newFakeSnapshotStore())

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.True(t, snapshot.IsWarmingUp)
	require.NotNil(t, snapshot.DaysSinceConnection)
	assert.Equal(t, 5, *snapshot.DaysSinceConnection)

	// Penalidade fixa de 10 pelo envio agressivo no warm-up
	assert.Equal(t, 90, snapshot.HealthScore)

	alert := findAlert(snapshot.Alerts, db.AlertWarmupExceeded)
	require.NotNil(t, alert)
	assert.Equal(t, db.SeverityWarning, alert.Severity)
}

func TestCalculateAndUpdateMetrics_ResponseRateLow(t *testing.T) {
	// Nenhuma leitura: zero respostas estimadas sobre 100 entregas
	messages := &fakeMessageStore{
		last24h:   50,
		last7Days: 100,
		statusCounts: map[db.MessageStatus]int{
			db.MessageDelivered: 100,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 60), messages, newFakeSnapshotStore())

	snapshot, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	alert := findAlert(snapshot.Alerts, db.AlertResponseRateLow)
	require.NotNil(t, alert)
	assert.Equal(t, db.SeverityCritical, alert.Severity)
}

func TestCalculateAndUpdateMetrics_Idempotent(t *testing.T) {
	messages := &fakeMessageStore{
		lastMinute: 2,
		lastHour:   30,
		last24h:    120,
		last7Days:  500,
		statusCounts: map[db.MessageStatus]int{
			db.MessageRead:   400,
			db.MessageSent:   80,
			db.MessageFailed: 20,
		},
	}
	svc := newTestService(connectedInstance("inst-1", 60), messages, newFakeSnapshotStore())

	first, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)
	firstScore := first.HealthScore

	second, err := svc.CalculateAndUpdateMetrics("inst-1")
	require.NoError(t, err)

	assert.Equal(t, firstScore, second.HealthScore)
	assert.Equal(t, first.MessagesSentLast24h, second.MessagesSentLast24h)
	assert.Equal(t, first.MessagesSentLast7Days, second.MessagesSentLast7Days)
	assert.Equal(t, first.MessagesDelivered, second.MessagesDelivered)
	assert.Equal(t, first.QualityRating, second.QualityRating)
}

func TestComputeHealthScore_Bounds(t *testing.T) {
	svc := newTestService(nil, &fakeMessageStore{}, newFakeSnapshotStore())

	// Varredura de combinações sintéticas: o score nunca sai de [0, 100]
	for _, delivered := range []int{0, 10, 50, 100} {
		for _, failed := range []int{0, 5, 30, 100} {
			for _, blocks := range []int{0, 1, 5, 20} {
				for _, last24h := range []int{0, 60, 240, 1000} {
					snapshot := &db.HealthMetricsSnapshot{
						DailyLimit:            250,
						MessagesSentLast24h:   last24h,
						MessagesSentLast7Days: delivered + failed,
						MessagesDelivered:     delivered,
						MessagesRead:          delivered,
						MessagesFailed:        failed,
						UserResponsesReceived: delivered / 2,
						UserBlocksReported:    blocks,
						IsWarmingUp:           last24h > 100,
					}
					rates := svc.computeRates(snapshot, delivered+failed)
					score := svc.computeHealthScore(snapshot, rates)

					assert.GreaterOrEqual(t, score, 0)
					assert.LessOrEqual(t, score, 100)
				}
			}
		}
	}
}

func TestComputeHealthScore_BlockPenaltiesAreCumulative(t *testing.T) {
	svc := newTestService(nil, &fakeMessageStore{}, newFakeSnapshotStore())

	// Taxa de bloqueio acima de 2% cruza as três faixas: 20+30+40
	snapshot := &db.HealthMetricsSnapshot{
		DailyLimit:            10000,
		MessagesSentLast7Days: 100,
		MessagesDelivered:     100,
		MessagesRead:          100,
		UserResponsesReceived: 40,
		UserBlocksReported:    5,
	}
	rates := svc.computeRates(snapshot, 100)
	score := svc.computeHealthScore(snapshot, rates)

	assert.Equal(t, 10, score)
}

func TestQualityRatingForScore(t *testing.T) {
	tests := []struct {
		score int
		want  db.QualityRating
	}{
		{100, db.QualityHigh},
		{80, db.QualityHigh},
		{79, db.QualityMedium},
		{60, db.QualityMedium},
		{59, db.QualityLow},
		{40, db.QualityLow},
		{39, db.QualityFlagged},
		{0, db.QualityFlagged},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QualityRatingForScore(tt.score), "score %d", tt.score)
	}
}

func alertTypes(alerts db.HealthAlertList) []db.AlertType {
	types := make([]db.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.Type)
	}
	return types
}

func findAlert(alerts db.HealthAlertList, alertType db.AlertType) *db.HealthAlert {
	for i := range alerts {
		if alerts[i].Type == alertType {
			return &alerts[i]
		}
	}
	return nil
}
