package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Provider is a bookable resource. Catalog rows are owned elsewhere; this
// service only reads them.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	TenantID    uuid.UUID `bun:"tenant_id,notnull,type:uuid"`
	LocationID  uuid.UUID `bun:"location_id,notnull,type:uuid"`
	DisplayName string    `bun:"display_name,notnull"`
	Active      bool      `bun:"is_active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type ServiceSpec struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	LocationID      uuid.UUID       `bun:"location_id,notnull,type:uuid"`
	Name            string          `bun:"name,notnull"`
	DurationMinutes int             `bun:"duration_minutes,notnull"`
	BufferMinutes   int             `bun:"buffer_minutes,notnull"`
	Price           decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Currency        string          `bun:"currency,notnull"`
	Active          bool            `bun:"is_active,notnull"`
	CreatedAt       time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}
