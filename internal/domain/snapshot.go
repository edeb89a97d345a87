package domain

import (
	"strconv"
	"time"
)

// Snapshot is a field map as it is written into the operation log and
// compared against client payloads. Identifiers are rendered as
// strings and timestamps as RFC3339 so that the conflict resolver's
// string-equality rule accepts a UUID compared against its own string
// form, and an int compared against its own decimal string.
type Snapshot map[string]any

// PreOrderSnapshot normalizes a PreOrder into every domain field plus
// version, created_at and updated_at, with uuid.UUID and time.Time
// coerced to strings.
func PreOrderSnapshot(p *PreOrder) Snapshot {
	s := Snapshot{
		"id":            p.ID.String(),
		"partner_id":    p.PartnerID.String(),
		"status":        strconv.Itoa(int(p.Status)),
		"delivery_date": p.DeliveryDate.Format(time.RFC3339),
		"version":       strconv.Itoa(p.Version),
		"created_at":    p.CreatedAt.Format(time.RFC3339),
		"updated_at":    p.UpdatedAt.Format(time.RFC3339),
	}
	if p.OrderDate != nil {
		s["order_date"] = p.OrderDate.Format(time.RFC3339)
	} else {
		s["order_date"] = nil
	}
	if p.Comment != nil {
		s["comment"] = *p.Comment
	} else {
		s["comment"] = nil
	}
	if p.DeletedAt != nil {
		s["deleted_at"] = p.DeletedAt.Format(time.RFC3339)
	} else {
		s["deleted_at"] = nil
	}
	return s
}

// PreOrderFlowSnapshot is the flow analogue of PreOrderSnapshot.
func PreOrderFlowSnapshot(f *PreOrderFlow) Snapshot {
	s := Snapshot{
		"id":          f.ID.String(),
		"pre_order_id": f.PreOrderID.String(),
		"product_id":  f.ProductID.String(),
		"quantity":    strconv.FormatFloat(f.Quantity, 'f', -1, 64),
		"price":       strconv.FormatFloat(f.Price, 'f', -1, 64),
		"unit_id":     f.UnitID.String(),
		"version":     strconv.Itoa(f.Version),
		"created_at":  f.CreatedAt.Format(time.RFC3339),
		"updated_at":  f.UpdatedAt.Format(time.RFC3339),
	}
	if f.Comment != nil {
		s["comment"] = *f.Comment
	} else {
		s["comment"] = nil
	}
	if f.DeletedAt != nil {
		s["deleted_at"] = f.DeletedAt.Format(time.RFC3339)
	} else {
		s["deleted_at"] = nil
	}
	return s
}
