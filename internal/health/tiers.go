package health

import (
	"github.com/cartback/cartback/internal/db"
	"go.uber.org/zap"
)

// Limite diário fixo de cada tier da API do WhatsApp Business.
var tierDailyLimits = map[db.VolumeTier]int{
	db.TierUnverified: 250,
	db.Tier1:          1000,
	db.Tier2:          10000,
	db.Tier3:          100000,
	db.Tier4:          999999,
}

var nextTier = map[db.VolumeTier]db.VolumeTier{
	db.TierUnverified: db.Tier1,
	db.Tier1:          db.Tier2,
	db.Tier2:          db.Tier3,
	db.Tier3:          db.Tier4,
}

var previousTier = map[db.VolumeTier]db.VolumeTier{
	db.Tier1: db.TierUnverified,
	db.Tier2: db.Tier1,
	db.Tier3: db.Tier2,
	db.Tier4: db.Tier3,
}

// Volume de 7 dias necessário para subir do tier atual para o próximo.
var upgradeVolumeThresholds = map[db.VolumeTier]int{
	db.TierUnverified: 150,
	db.Tier1:          700,
	db.Tier2:          7000,
	db.Tier3:          70000,
}

// TierDailyLimit returns the fixed daily send limit for a tier.
func TierDailyLimit(tier db.VolumeTier) int {
	if limit, ok := tierDailyLimits[tier]; ok {
		return limit
	}
	return tierDailyLimits[db.TierUnverified]
}

// UpdateTierIfNeeded avança ou rebaixa o tier da instância em no máximo um
// passo por chamada. Upgrade exige rating high e uso >= 50% do limite atual;
// downgrade acontece com rating low/flagged independente de volume.
//
// Os dois blocos são avaliados em sequência e não são mutuamente
// exclusivos; comportamento herdado da implementação original.
func (s *Service) UpdateTierIfNeeded(snapshot *db.HealthMetricsSnapshot) error {
	changed := false

	// Upgrade: um passo por vez, sem pular tiers
	usagePercent := 0.0
	if snapshot.DailyLimit > 0 {
		usagePercent = float64(snapshot.MessagesSentLast24h) / float64(snapshot.DailyLimit) * 100
	}

	if snapshot.QualityRating == db.QualityHigh && usagePercent >= 50 {
		if next, ok := nextTier[snapshot.CurrentTier]; ok {
			if snapshot.MessagesSentLast7Days >= upgradeVolumeThresholds[snapshot.CurrentTier] {
				s.logger.Info("Upgrading instance tier",
					zap.String("instance_id", snapshot.InstanceID),
					zap.String("from", string(snapshot.CurrentTier)),
					zap.String("to", string(next)),
					zap.Int("messages_last_7_days", snapshot.MessagesSentLast7Days),
				)

				snapshot.CurrentTier = next
				snapshot.DailyLimit = tierDailyLimits[next]
				changed = true
			}
		}
	}

	// Downgrade: rating baixo rebaixa um tier, independente de volume
	if (snapshot.QualityRating == db.QualityLow || snapshot.QualityRating == db.QualityFlagged) &&
		snapshot.CurrentTier != db.TierUnverified {
		prev := previousTier[snapshot.CurrentTier]

		s.logger.Warn("Downgrading instance tier due to low quality",
			zap.String("instance_id", snapshot.InstanceID),
			zap.String("from", string(snapshot.CurrentTier)),
			zap.String("to", string(prev)),
			zap.String("quality_rating", string(snapshot.QualityRating)),
		)

		snapshot.CurrentTier = prev
		snapshot.DailyLimit = tierDailyLimits[prev]
		changed = true
	}

	if !changed {
		return nil
	}

	return s.snapshots.UpdateSnapshot(snapshot)
}
