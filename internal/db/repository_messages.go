package db

import (
	"database/sql"
	"time"
)

// Message log operations
func (r *Repository) CreateMessageLog(m *MessageLog) error {
	query := `
        INSERT INTO message_logs (
            id, tenant_id, instance_id, cart_id, template_id, to_phone,
            body, status, provider_message_id, error, sent_at, created_at
        ) VALUES (
            :id, :tenant_id, :instance_id, :cart_id, :template_id, :to_phone,
            :body, :status, :provider_message_id, :error, :sent_at, :created_at
        )`

	_, err := r.db.NamedExec(query, m)
	return err
}

// UpdateMessageStatus atualiza o status de entrega a partir do
// provider_message_id reportado pelos webhooks do provedor.
func (r *Repository) UpdateMessageStatus(providerMessageID string, status MessageStatus, errMsg string) error {
	query := `
        UPDATE message_logs SET
            status = $2,
            error = $3
        WHERE provider_message_id = $1`

	_, err := r.db.Exec(query, providerMessageID, status, errMsg)
	return err
}

func (r *Repository) GetMessageHistory(instanceID, tenantID string, limit int) ([]*MessageLog, error) {
	logs := []*MessageLog{}
	query := `
        SELECT * FROM message_logs
        WHERE instance_id = $1 AND tenant_id = $2
        ORDER BY created_at DESC
        LIMIT $3`

	err := r.db.Select(&logs, query, instanceID, tenantID, limit)
	return logs, err
}

// CountMessagesSince conta mensagens da instância criadas a partir de um
// limite inferior de tempo. Cada janela rolante do health check faz uma
// chamada independente.
func (r *Repository) CountMessagesSince(instanceID string, since time.Time) (int, error) {
	var count int
	query := `
        SELECT COUNT(*) FROM message_logs
        WHERE instance_id = $1 AND created_at >= $2`

	err := r.db.Get(&count, query, instanceID, since)
	return count, err
}

func (r *Repository) CountMessagesByStatusSince(instanceID string, since time.Time) (map[MessageStatus]int, error) {
	rows := []struct {
		Status MessageStatus `db:"status"`
		Count  int           `db:"count"`
	}{}
	query := `
        SELECT status, COUNT(*) AS count FROM message_logs
        WHERE instance_id = $1 AND created_at >= $2
        GROUP BY status`

	if err := r.db.Select(&rows, query, instanceID, since); err != nil {
		return nil, err
	}

	counts := make(map[MessageStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *Repository) LastMessageSentAt(instanceID string) (*time.Time, error) {
	var sentAt sql.NullTime
	query := `
        SELECT MAX(sent_at) FROM message_logs
        WHERE instance_id = $1 AND sent_at IS NOT NULL`

	if err := r.db.Get(&sentAt, query, instanceID); err != nil {
		return nil, err
	}
	if !sentAt.Valid {
		return nil, nil
	}
	return &sentAt.Time, nil
}

// Health snapshot operations
func (r *Repository) GetSnapshotByInstance(instanceID string) (*HealthMetricsSnapshot, error) {
	var s HealthMetricsSnapshot
	query := `SELECT * FROM health_metrics_snapshots WHERE instance_id = $1`
	err := r.db.Get(&s, query, instanceID)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	return &s, err
}

func (r *Repository) CreateSnapshot(s *HealthMetricsSnapshot) error {
	query := `
        INSERT INTO health_metrics_snapshots (
            id, instance_id, tenant_id, health_score, quality_rating,
            current_tier, daily_limit, days_since_connection, is_warming_up,
            messages_sent_last_minute, messages_sent_last_hour,
            messages_sent_last_24h, messages_sent_last_7_days,
            messages_delivered, messages_read, messages_failed,
            user_responses_received, user_blocks_reported,
            last_message_sent_at, alerts, has_alerts,
            metrics_calculated_at, created_at, updated_at
        ) VALUES (
            :id, :instance_id, :tenant_id, :health_score, :quality_rating,
            :current_tier, :daily_limit, :days_since_connection, :is_warming_up,
            :messages_sent_last_minute, :messages_sent_last_hour,
            :messages_sent_last_24h, :messages_sent_last_7_days,
            :messages_delivered, :messages_read, :messages_failed,
            :user_responses_received, :user_blocks_reported,
            :last_message_sent_at, :alerts, :has_alerts,
            :metrics_calculated_at, :created_at, :updated_at
        )`

	_, err := r.db.NamedExec(query, s)
	return err
}

func (r *Repository) UpdateSnapshot(s *HealthMetricsSnapshot) error {
	query := `
        UPDATE health_metrics_snapshots SET
            health_score = :health_score,
            quality_rating = :quality_rating,
            current_tier = :current_tier,
            daily_limit = :daily_limit,
            days_since_connection = :days_since_connection,
            is_warming_up = :is_warming_up,
            messages_sent_last_minute = :messages_sent_last_minute,
            messages_sent_last_hour = :messages_sent_last_hour,
            messages_sent_last_24h = :messages_sent_last_24h,
            messages_sent_last_7_days = :messages_sent_last_7_days,
            messages_delivered = :messages_delivered,
            messages_read = :messages_read,
            messages_failed = :messages_failed,
            user_responses_received = :user_responses_received,
            user_blocks_reported = :user_blocks_reported,
            last_message_sent_at = :last_message_sent_at,
            alerts = :alerts,
            has_alerts = :has_alerts,
            metrics_calculated_at = :metrics_calculated_at,
            updated_at = :updated_at
        WHERE id = :id`

	_, err := r.db.NamedExec(query, s)
	return err
}

func (r *Repository) GetSnapshotsByTenant(tenantID string) ([]*HealthMetricsSnapshot, error) {
	snapshots := []*HealthMetricsSnapshot{}
	query := `
        SELECT * FROM health_metrics_snapshots
        WHERE tenant_id = $1
        ORDER BY metrics_calculated_at DESC`

	err := r.db.Select(&snapshots, query, tenantID)
	return snapshots, err
}
