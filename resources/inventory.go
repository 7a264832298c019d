package resources

import (
	"errors"
	"fmt"

	"maintcore/config"
)

var ErrUnknownPart = errors.New("unknown spare part")

type SparePart struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PartNumber   string  `json:"part_number"`
	OnHand       int     `json:"quantity_on_hand"`
	MinStock     int     `json:"min_stock"`
	LeadTimeDays int     `json:"lead_time_days"`
	Vendor       string  `json:"vendor"`
	UnitCost     float64 `json:"unit_cost"`
}

// Requirement is a part a repair consumes, with the live stock at lookup time.
type Requirement struct {
	Part     SparePart `json:"spare_part"`
	Quantity int       `json:"quantity"`
}

// Short reports whether stock does not cover the requirement.
func (r Requirement) Short() bool {
	return r.Part.OnHand < r.Quantity
}

// SparesMap maps a component or anomaly source to the parts its repair needs.
type SparesMap map[string][]config.SpareNeed

type Inventory struct {
	parts  []*SparePart
	byID   map[string]*SparePart
	byName map[string]*SparePart
	spares SparesMap
}

func NewInventory(parts []SparePart, spares SparesMap) *Inventory {
	inv := &Inventory{
		byID:   make(map[string]*SparePart, len(parts)),
		byName: make(map[string]*SparePart, len(parts)),
		spares: spares,
	}
	for i := range parts {
		p := parts[i]
		inv.parts = append(inv.parts, &p)
		inv.byID[p.ID] = &p
		inv.byName[p.Name] = &p
	}
	return inv
}

func InventoryFromSeed(seed []config.SpareSeed, spares SparesMap) (*Inventory, error) {
	parts := make([]SparePart, 0, len(seed))
	for _, s := range seed {
		if s.Quantity < 0 || s.MinStock < 0 || s.LeadTimeDays < 0 {
			return nil, fmt.Errorf("spare %s: negative quantity, min stock or lead time", s.ID)
		}
		parts = append(parts, SparePart{
			ID:           s.ID,
			Name:         s.Name,
			PartNumber:   s.PartNumber,
			OnHand:       s.Quantity,
			MinStock:     s.MinStock,
			LeadTimeDays: s.LeadTimeDays,
			Vendor:       s.Vendor,
			UnitCost:     s.UnitCost,
		})
	}
	return NewInventory(parts, spares), nil
}

// Requirements resolves the parts a repair of name needs against live stock.
// Unmapped names, and mapped parts with no stock record, need nothing.
func (inv *Inventory) Requirements(name string) []Requirement {
	var out []Requirement
	for _, need := range inv.spares[name] {
		p, ok := inv.byName[need.Part]
		if !ok || need.Quantity <= 0 {
			continue
		}
		out = append(out, Requirement{Part: *p, Quantity: need.Quantity})
	}
	return out
}

func Shortfalls(reqs []Requirement) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if r.Short() {
			out = append(out, r)
		}
	}
	return out
}

// Receive credits delivered stock.
func (inv *Inventory) Receive(partID string, qty int) error {
	p, ok := inv.byID[partID]
	if !ok {
		return fmt.Errorf("receive %s: %w", partID, ErrUnknownPart)
	}
	if qty <= 0 {
		return fmt.Errorf("receive %s: quantity %d must be positive", partID, qty)
	}
	p.OnHand += qty
	return nil
}

func (inv *Inventory) Get(id string) (SparePart, bool) {
	p, ok := inv.byID[id]
	if !ok {
		return SparePart{}, false
	}
	return *p, true
}

func (inv *Inventory) List() []SparePart {
	out := make([]SparePart, len(inv.parts))
	for i, p := range inv.parts {
		out[i] = *p
	}
	return out
}

// BelowMinStock lists parts whose stock has fallen under the safety level.
func (inv *Inventory) BelowMinStock() []SparePart {
	var out []SparePart
	for _, p := range inv.parts {
		if p.OnHand < p.MinStock {
			out = append(out, *p)
		}
	}
	return out
}
