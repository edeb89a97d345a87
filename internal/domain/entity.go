// Package domain holds the entity kinds the sync engine replicates:
// pre-orders and their line-item flows.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType discriminates the two entity kinds the sync engine knows
// how to replicate. Modeled as a small int enum in the style of
// internal/types.Product, rather than a generic table identifier: this
// engine has exactly two concrete kinds, not an open schema.
type EntityType int

const (
	EntityUnknown EntityType = iota
	EntityPreOrder
	EntityPreOrderFlow
)

func (e EntityType) String() string {
	switch e {
	case EntityPreOrder:
		return "pre_order"
	case EntityPreOrderFlow:
		return "pre_order_flow"
	default:
		return "unknown"
	}
}

// ParseEntityType maps the wire string back to an EntityType.
func ParseEntityType(s string) EntityType {
	switch s {
	case "pre_order":
		return EntityPreOrder
	case "pre_order_flow":
		return EntityPreOrderFlow
	default:
		return EntityUnknown
	}
}

// OperationType is the kind of mutation a client is proposing.
type OperationType int

const (
	OpUnknown OperationType = iota
	OpCreate
	OpUpdate
	OpDelete
)

func (o OperationType) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseOperationType maps the wire string back to an OperationType.
func ParseOperationType(s string) OperationType {
	switch s {
	case "CREATE":
		return OpCreate
	case "UPDATE":
		return OpUpdate
	case "DELETE":
		return OpDelete
	default:
		return OpUnknown
	}
}

// PreOrderStatus mirrors models.py's integer status column.
type PreOrderStatus int

const (
	PreOrderPending PreOrderStatus = iota
	PreOrderConfirmed
)

// PreOrder is the parent entity. Flows (PreOrderFlow) are its children
// and are hard-deleted in cascade when a PreOrder is soft-deleted.
type PreOrder struct {
	ID            uuid.UUID
	PartnerID     uuid.UUID
	Status        PreOrderStatus
	OrderDate     *time.Time
	DeliveryDate  time.Time
	Comment       *string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Deleted reports whether the entity is tombstoned.
func (p *PreOrder) Deleted() bool { return p.DeletedAt != nil }

// PreOrderFlow is a line item attached to a PreOrder.
type PreOrderFlow struct {
	ID         uuid.UUID
	PreOrderID uuid.UUID
	ProductID  uuid.UUID
	Quantity   float64
	Price      float64
	UnitID     uuid.UUID
	Comment    *string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// Deleted reports whether the flow is tombstoned.
func (f *PreOrderFlow) Deleted() bool { return f.DeletedAt != nil }

// PreOrderWhitelist is the set of domain fields apply_update may write
// for a PreOrder. Fixed per kind, per spec.md sec 4.1; id, version,
// created_at and deleted_at are never in it.
var PreOrderWhitelist = map[string]struct{}{
	"partner_id":    {},
	"status":        {},
	"order_date":    {},
	"delivery_date": {},
	"comment":       {},
}

// PreOrderFlowWhitelist is the analogous whitelist for flows.
var PreOrderFlowWhitelist = map[string]struct{}{
	"product_id": {},
	"quantity":   {},
	"price":      {},
	"unit_id":    {},
	"comment":    {},
}
