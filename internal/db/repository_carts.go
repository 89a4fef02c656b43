package db

import (
	"database/sql"
	"time"
)

// Abandoned cart operations
func (r *Repository) CreateCart(c *AbandonedCart) error {
	query := `
        INSERT INTO abandoned_carts (
            id, tenant_id, source, external_id, customer_name,
            customer_phone, total_cents, currency, checkout_url, items,
            status, abandoned_at, recovered_at, created_at, updated_at
        ) VALUES (
            :id, :tenant_id, :source, :external_id, :customer_name,
            :customer_phone, :total_cents, :currency, :checkout_url, :items,
            :status, :abandoned_at, :recovered_at, :created_at, :updated_at
        )`

	_, err := r.db.NamedExec(query, c)
	return err
}

func (r *Repository) GetCart(id, tenantID string) (*AbandonedCart, error) {
	var c AbandonedCart
	query := `SELECT * FROM abandoned_carts WHERE id = $1 AND tenant_id = $2`
	err := r.db.Get(&c, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrCartNotFound
	}
	return &c, err
}

func (r *Repository) GetCartByExternalID(tenantID string, source CartSource, externalID string) (*AbandonedCart, error) {
	var c AbandonedCart
	query := `
        SELECT * FROM abandoned_carts
        WHERE tenant_id = $1 AND source = $2 AND external_id = $3`
	err := r.db.Get(&c, query, tenantID, source, externalID)
	if err == sql.ErrNoRows {
		return nil, ErrCartNotFound
	}
	return &c, err
}

func (r *Repository) GetCartsByTenant(tenantID string, status CartStatus, limit, offset int) ([]*AbandonedCart, error) {
	carts := []*AbandonedCart{}

	if status != "" {
		query := `
            SELECT * FROM abandoned_carts
            WHERE tenant_id = $1 AND status = $2
            ORDER BY abandoned_at DESC
            LIMIT $3 OFFSET $4`
		err := r.db.Select(&carts, query, tenantID, status, limit, offset)
		return carts, err
	}

	query := `
        SELECT * FROM abandoned_carts
        WHERE tenant_id = $1
        ORDER BY abandoned_at DESC
        LIMIT $2 OFFSET $3`
	err := r.db.Select(&carts, query, tenantID, limit, offset)
	return carts, err
}

func (r *Repository) UpdateCart(c *AbandonedCart) error {
	query := `
        UPDATE abandoned_carts SET
            customer_name = :customer_name,
            customer_phone = :customer_phone,
            total_cents = :total_cents,
            currency = :currency,
            checkout_url = :checkout_url,
            items = :items,
            status = :status,
            recovered_at = :recovered_at,
            updated_at = :updated_at
        WHERE id = :id AND tenant_id = :tenant_id`

	_, err := r.db.NamedExec(query, c)
	return err
}

// Recovery attempt operations
func (r *Repository) CreateAttempt(a *RecoveryAttempt) error {
	query := `
        INSERT INTO recovery_attempts (
            id, cart_id, tenant_id, instance_id, template_id,
            attempt_number, status, scheduled_for, sent_at,
            message_log_id, error, created_at
        ) VALUES (
            :id, :cart_id, :tenant_id, :instance_id, :template_id,
            :attempt_number, :status, :scheduled_for, :sent_at,
            :message_log_id, :error, :created_at
        )`

	_, err := r.db.NamedExec(query, a)
	return err
}

func (r *Repository) GetAttempt(id string) (*RecoveryAttempt, error) {
	var a RecoveryAttempt
	query := `SELECT * FROM recovery_attempts WHERE id = $1`
	err := r.db.Get(&a, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrAttemptNotFound
	}
	return &a, err
}

// GetDueAttempts retorna tentativas agendadas cujo horário já passou.
func (r *Repository) GetDueAttempts(now time.Time, limit int) ([]*RecoveryAttempt, error) {
	attempts := []*RecoveryAttempt{}
	query := `
        SELECT * FROM recovery_attempts
        WHERE status = 'scheduled' AND scheduled_for <= $1
        ORDER BY scheduled_for ASC
        LIMIT $2`

	err := r.db.Select(&attempts, query, now, limit)
	return attempts, err
}

func (r *Repository) UpdateAttempt(a *RecoveryAttempt) error {
	query := `
        UPDATE recovery_attempts SET
            status = :status,
            sent_at = :sent_at,
            message_log_id = :message_log_id,
            error = :error
        WHERE id = :id`

	_, err := r.db.NamedExec(query, a)
	return err
}

func (r *Repository) GetAttemptsByCart(cartID, tenantID string) ([]*RecoveryAttempt, error) {
	attempts := []*RecoveryAttempt{}
	query := `
        SELECT * FROM recovery_attempts
        WHERE cart_id = $1 AND tenant_id = $2
        ORDER BY attempt_number ASC`

	err := r.db.Select(&attempts, query, cartID, tenantID)
	return attempts, err
}

// CancelPendingAttempts cancela tentativas agendadas de um carrinho que
// foi recuperado ou expirou.
func (r *Repository) CancelPendingAttempts(cartID string) error {
	query := `
        UPDATE recovery_attempts SET status = 'cancelled'
        WHERE cart_id = $1 AND status IN ('scheduled', 'queued')`

	_, err := r.db.Exec(query, cartID)
	return err
}

// CartRecoveryStats agrega o funil de recuperação do tenant.
type CartRecoveryStats struct {
	TotalCarts          int   `db:"total_carts"`
	RecoveredCarts      int   `db:"recovered_carts"`
	RecoveredValueCents int64 `db:"recovered_value_cents"`
}

func (r *Repository) GetCartRecoveryStats(tenantID string) (*CartRecoveryStats, error) {
	var stats CartRecoveryStats
	query := `
        SELECT
            COUNT(*) AS total_carts,
            COUNT(*) FILTER (WHERE status = 'recovered') AS recovered_carts,
            COALESCE(SUM(total_cents) FILTER (WHERE status = 'recovered'), 0) AS recovered_value_cents
        FROM abandoned_carts
        WHERE tenant_id = $1`

	err := r.db.Get(&stats, query, tenantID)
	return &stats, err
}

// Nuvemshop store credentials
func (r *Repository) UpsertNuvemshopStore(s *NuvemshopStore) error {
	query := `
        INSERT INTO nuvemshop_stores (
            tenant_id, store_id, access_token, created_at, updated_at
        ) VALUES (
            :tenant_id, :store_id, :access_token, :created_at, :updated_at
        ) ON CONFLICT (store_id) DO UPDATE SET
            tenant_id = EXCLUDED.tenant_id,
            access_token = EXCLUDED.access_token,
            updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExec(query, s)
	return err
}

// GetNuvemshopStore resolve o tenant dono da loja que originou o webhook.
func (r *Repository) GetNuvemshopStore(storeID int64) (*NuvemshopStore, error) {
	var s NuvemshopStore
	query := `SELECT * FROM nuvemshop_stores WHERE store_id = $1`
	err := r.db.Get(&s, query, storeID)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return &s, err
}

// Subscription and payment operations
func (r *Repository) UpsertSubscription(s *Subscription) error {
	query := `
        INSERT INTO subscriptions (
            id, tenant_id, asaas_customer_id, plan, status,
            current_period_end, created_at, updated_at
        ) VALUES (
            :id, :tenant_id, :asaas_customer_id, :plan, :status,
            :current_period_end, :created_at, :updated_at
        ) ON CONFLICT (tenant_id) DO UPDATE SET
            asaas_customer_id = EXCLUDED.asaas_customer_id,
            plan = EXCLUDED.plan,
            status = EXCLUDED.status,
            current_period_end = EXCLUDED.current_period_end,
            updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExec(query, s)
	return err
}

func (r *Repository) GetSubscriptionByTenant(tenantID string) (*Subscription, error) {
	var s Subscription
	query := `SELECT * FROM subscriptions WHERE tenant_id = $1`
	err := r.db.Get(&s, query, tenantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &s, err
}

func (r *Repository) CreatePayment(p *Payment) error {
	query := `
        INSERT INTO payments (
            id, tenant_id, subscription_id, asaas_payment_id,
            amount_cents, status, paid_at, created_at
        ) VALUES (
            :id, :tenant_id, :subscription_id, :asaas_payment_id,
            :amount_cents, :status, :paid_at, :created_at
        ) ON CONFLICT (asaas_payment_id) DO UPDATE SET
            status = EXCLUDED.status,
            paid_at = EXCLUDED.paid_at`

	_, err := r.db.NamedExec(query, p)
	return err
}

func (r *Repository) GetPaymentsByTenant(tenantID string, limit int) ([]*Payment, error) {
	payments := []*Payment{}
	query := `
        SELECT * FROM payments
        WHERE tenant_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	err := r.db.Select(&payments, query, tenantID, limit)
	return payments, err
}
