package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping() error {
	return r.db.Ping()
}

// Tenant operations
func (r *Repository) CreateTenant(t *Tenant, passwordHash string) error {
	query := `
        INSERT INTO tenants (
            id, name, email, password_hash, api_key, mimir_tenant_id,
            max_instances, is_active, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        )`

	_, err := r.db.Exec(query,
		t.ID, t.Name, t.Email, passwordHash, t.APIKey, t.MimirTenantID,
		t.MaxInstances, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *Repository) GetTenantByEmail(email string) (*Tenant, string, error) {
	var row struct {
		Tenant
		PasswordHash string `db:"password_hash"`
	}
	query := `SELECT * FROM tenants WHERE email = $1`
	err := r.db.Get(&row, query, email)
	if err == sql.ErrNoRows {
		return nil, "", ErrTenantNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &row.Tenant, row.PasswordHash, nil
}

func (r *Repository) GetTenant(id string) (*Tenant, error) {
	var t Tenant
	query := `
        SELECT id, name, email, api_key, mimir_tenant_id, max_instances,
               is_active, created_at, updated_at
        FROM tenants WHERE id = $1`
	err := r.db.Get(&t, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return &t, err
}

// GetTenantByAPIKey autentica webhooks de carrinho da API pública.
func (r *Repository) GetTenantByAPIKey(apiKey string) (*Tenant, error) {
	var t Tenant
	query := `
        SELECT id, name, email, api_key, mimir_tenant_id, max_instances,
               is_active, created_at, updated_at
        FROM tenants WHERE api_key = $1`
	err := r.db.Get(&t, query, apiKey)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return &t, err
}

func (r *Repository) EmailExists(email string) (bool, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM tenants WHERE email = $1`, email)
	return count > 0, err
}

// WhatsApp instance operations
func (r *Repository) CreateInstance(i *WhatsAppInstance) error {
	query := `
        INSERT INTO whatsapp_instances (
            id, tenant_id, name, channel, phone_number, status,
            external_id, connected_at, created_at, updated_at
        ) VALUES (
            :id, :tenant_id, :name, :channel, :phone_number, :status,
            :external_id, :connected_at, :created_at, :updated_at
        )`

	_, err := r.db.NamedExec(query, i)
	return err
}

func (r *Repository) GetInstance(id, tenantID string) (*WhatsAppInstance, error) {
	var i WhatsAppInstance
	query := `SELECT * FROM whatsapp_instances WHERE id = $1 AND tenant_id = $2`
	err := r.db.Get(&i, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrInstanceNotFound
	}
	return &i, err
}

// GetInstanceByID busca sem escopo de tenant; usado pelo engine de health
// e pelos workers.
func (r *Repository) GetInstanceByID(id string) (*WhatsAppInstance, error) {
	var i WhatsAppInstance
	query := `SELECT * FROM whatsapp_instances WHERE id = $1`
	err := r.db.Get(&i, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrInstanceNotFound
	}
	return &i, err
}

func (r *Repository) GetInstancesByTenant(tenantID string) ([]*WhatsAppInstance, error) {
	instances := []*WhatsAppInstance{}
	query := `
        SELECT * FROM whatsapp_instances
        WHERE tenant_id = $1
        ORDER BY created_at DESC`

	err := r.db.Select(&instances, query, tenantID)
	return instances, err
}

func (r *Repository) GetConnectedInstances() ([]*WhatsAppInstance, error) {
	instances := []*WhatsAppInstance{}
	query := `SELECT * FROM whatsapp_instances WHERE status = 'connected'`
	err := r.db.Select(&instances, query)
	return instances, err
}

func (r *Repository) UpdateInstance(i *WhatsAppInstance) error {
	query := `
        UPDATE whatsapp_instances SET
            name = :name,
            phone_number = :phone_number,
            status = :status,
            external_id = :external_id,
            connected_at = :connected_at,
            updated_at = :updated_at
        WHERE id = :id AND tenant_id = :tenant_id`

	_, err := r.db.NamedExec(query, i)
	return err
}

func (r *Repository) DeleteInstance(id, tenantID string) error {
	query := `DELETE FROM whatsapp_instances WHERE id = $1 AND tenant_id = $2`
	_, err := r.db.Exec(query, id, tenantID)
	return err
}

func (r *Repository) CountInstancesByTenant(tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM whatsapp_instances WHERE tenant_id = $1`
	err := r.db.Get(&count, query, tenantID)
	return count, err
}

func (r *Repository) MarkInstanceConnected(id string, connectedAt time.Time) error {
	query := `
        UPDATE whatsapp_instances SET
            status = 'connected',
            connected_at = COALESCE(connected_at, $2),
            updated_at = NOW()
        WHERE id = $1`

	_, err := r.db.Exec(query, id, connectedAt)
	return err
}

// Template operations
func (r *Repository) CreateTemplate(t *MessageTemplate) error {
	query := `
        INSERT INTO message_templates (
            id, tenant_id, name, language, body, variables,
            meta_status, created_at, updated_at
        ) VALUES (
            :id, :tenant_id, :name, :language, :body, :variables,
            :meta_status, :created_at, :updated_at
        )`

	_, err := r.db.NamedExec(query, t)
	return err
}

func (r *Repository) GetTemplate(id, tenantID string) (*MessageTemplate, error) {
	var t MessageTemplate
	query := `SELECT * FROM message_templates WHERE id = $1 AND tenant_id = $2`
	err := r.db.Get(&t, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	return &t, err
}

func (r *Repository) GetTemplatesByTenant(tenantID string) ([]*MessageTemplate, error) {
	templates := []*MessageTemplate{}
	query := `
        SELECT * FROM message_templates
        WHERE tenant_id = $1
        ORDER BY created_at DESC`

	err := r.db.Select(&templates, query, tenantID)
	return templates, err
}

func (r *Repository) UpdateTemplate(t *MessageTemplate) error {
	query := `
        UPDATE message_templates SET
            name = :name,
            language = :language,
            body = :body,
            variables = :variables,
            meta_status = :meta_status,
            updated_at = :updated_at
        WHERE id = :id AND tenant_id = :tenant_id`

	_, err := r.db.NamedExec(query, t)
	return err
}

func (r *Repository) DeleteTemplate(id, tenantID string) error {
	query := `DELETE FROM message_templates WHERE id = $1 AND tenant_id = $2`
	_, err := r.db.Exec(query, id, tenantID)
	return err
}
