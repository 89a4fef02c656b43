package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

func tierTestService(snapshots *fakeSnapshotStore) *Service {
	return NewService(&fakeInstanceStore{}, &fakeMessageStore{}, snapshots, zap.NewNop())
}

func TestUpdateTierIfNeeded_Upgrade(t *testing.T) {
	tests := []struct {
		name      string
		tier      db.VolumeTier
		limit     int
		last24h   int
		last7Days int
		rating    db.QualityRating
		wantTier  db.VolumeTier
		wantLimit int
	}{
		{
			name:      "unverified to tier1",
			tier:      db.TierUnverified,
			limit:     250,
			last24h:   138, // 55% do limite
			last7Days: 200,
			rating:    db.QualityHigh,
			wantTier:  db.Tier1,
			wantLimit: 1000,
		},
		{
			name:      "tier1 to tier2",
			tier:      db.Tier1,
			limit:     1000,
			last24h:   600,
			last7Days: 900,
			rating:    db.QualityHigh,
			wantTier:  db.Tier2,
			wantLimit: 10000,
		},
		{
			name:      "no skip even with massive volume",
			tier:      db.TierUnverified,
			limit:     250,
			last24h:   200,
			last7Days: 100000,
			rating:    db.QualityHigh,
			wantTier:  db.Tier1,
			wantLimit: 1000,
		},
		{
			name:      "usage below 50 percent blocks upgrade",
			tier:      db.TierUnverified,
			limit:     250,
			last24h:   100, // 40%
			last7Days: 200,
			rating:    db.QualityHigh,
			wantTier:  db.TierUnverified,
			wantLimit: 250,
		},
		{
			name:      "volume below threshold blocks upgrade",
			tier:      db.TierUnverified,
			limit:     250,
			last24h:   138,
			last7Days: 100,
			rating:    db.QualityHigh,
			wantTier:  db.TierUnverified,
			wantLimit: 250,
		},
		{
			name:      "medium rating blocks upgrade",
			tier:      db.TierUnverified,
			limit:     250,
			last24h:   138,
			last7Days: 200,
			rating:    db.QualityMedium,
			wantTier:  db.TierUnverified,
			wantLimit: 250,
		},
		{
			name:      "tier4 has nowhere to go",
			tier:      db.Tier4,
			limit:     999999,
			last24h:   600000,
			last7Days: 4000000,
			rating:    db.QualityHigh,
			wantTier:  db.Tier4,
			wantLimit: 999999,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots := newFakeSnapshotStore()
			snapshot := &db.HealthMetricsSnapshot{
				ID:                    "snap-1",
				InstanceID:            "inst-1",
				CurrentTier:           tt.tier,
				DailyLimit:            tt.limit,
				MessagesSentLast24h:   tt.last24h,
				MessagesSentLast7Days: tt.last7Days,
				QualityRating:         tt.rating,
			}

			err := tierTestService(snapshots).UpdateTierIfNeeded(snapshot)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTier, snapshot.CurrentTier)
			assert.Equal(t, tt.wantLimit, snapshot.DailyLimit)
		})
	}
}

func TestUpdateTierIfNeeded_Downgrade(t *testing.T) {
	tests := []struct {
		name      string
		tier      db.VolumeTier
		limit     int
		rating    db.QualityRating
		wantTier  db.VolumeTier
		wantLimit int
	}{
		{
			name:      "flagged tier2 drops to tier1 regardless of volume",
			tier:      db.Tier2,
			limit:     10000,
			rating:    db.QualityFlagged,
			wantTier:  db.Tier1,
			wantLimit: 1000,
		},
		{
			name:      "low tier4 drops to tier3",
			tier:      db.Tier4,
			limit:     999999,
			rating:    db.QualityLow,
			wantTier:  db.Tier3,
			wantLimit: 100000,
		},
		{
			name:      "unverified cannot drop further",
			tier:      db.TierUnverified,
			limit:     250,
			rating:    db.QualityFlagged,
			wantTier:  db.TierUnverified,
			wantLimit: 250,
		},
		{
			name:      "medium rating does not downgrade",
			tier:      db.Tier3,
			limit:     100000,
			rating:    db.QualityMedium,
			wantTier:  db.Tier3,
			wantLimit: 100000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots := newFakeSnapshotStore()
			snapshot := &db.HealthMetricsSnapshot{
				ID:                    "snap-1",
				InstanceID:            "inst-1",
				CurrentTier:           tt.tier,
				DailyLimit:            tt.limit,
				MessagesSentLast24h:   1,
				MessagesSentLast7Days: 1,
				QualityRating:         tt.rating,
			}

			err := tierTestService(snapshots).UpdateTierIfNeeded(snapshot)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTier, snapshot.CurrentTier)
			assert.Equal(t, tt.wantLimit, snapshot.DailyLimit)
		})
	}
}

func TestUpdateTierIfNeeded_SingleStepPerCall(t *testing.T) {
	// Um mesmo snapshot elegível muda no máximo um tier por chamada,
	// mesmo chamando repetidamente
	snapshots := newFakeSnapshotStore()
	snapshot := &db.HealthMetricsSnapshot{
		ID:                    "snap-1",
		InstanceID:            "inst-1",
		CurrentTier:           db.TierUnverified,
		DailyLimit:            250,
		MessagesSentLast24h:   240,
		MessagesSentLast7Days: 90000,
		QualityRating:         db.QualityHigh,
	}
	svc := tierTestService(snapshots)

	require.NoError(t, svc.UpdateTierIfNeeded(snapshot))
	assert.Equal(t, db.Tier1, snapshot.CurrentTier)

	// 240/1000 = 24% de uso: abaixo da elegibilidade, para de subir
	require.NoError(t, svc.UpdateTierIfNeeded(snapshot))
	assert.Equal(t, db.Tier1, snapshot.CurrentTier)
}

func TestUpdateTierIfNeeded_PersistsChanges(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	snapshot := &db.HealthMetricsSnapshot{
		ID:                    "snap-1",
		InstanceID:            "inst-1",
		CurrentTier:           db.Tier2,
		DailyLimit:            10000,
		MessagesSentLast24h:   10,
		MessagesSentLast7Days: 10,
		QualityRating:         db.QualityFlagged,
	}
	svc := tierTestService(snapshots)

	require.NoError(t, svc.UpdateTierIfNeeded(snapshot))
	assert.Equal(t, 1, snapshots.updated)

	// Sem transição, sem escrita
	snapshot.QualityRating = db.QualityMedium
	require.NoError(t, svc.UpdateTierIfNeeded(snapshot))
	assert.Equal(t, 1, snapshots.updated)
}

func TestTierDailyLimit(t *testing.T) {
	assert.Equal(t, 250, TierDailyLimit(db.TierUnverified))
	assert.Equal(t, 1000, TierDailyLimit(db.Tier1))
	assert.Equal(t, 10000, TierDailyLimit(db.Tier2))
	assert.Equal(t, 100000, TierDailyLimit(db.Tier3))
	assert.Equal(t, 999999, TierDailyLimit(db.Tier4))
	assert.Equal(t, 250, TierDailyLimit(db.VolumeTier("unknown")))
}
