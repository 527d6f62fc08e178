// Package beneficiary collects the people an order is booked for.
package beneficiary

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrCapacityReached = errors.New("beneficiary: quantity already reached")
	ErrNotFound        = errors.New("beneficiary: not found")
	ErrInvalidQuantity = errors.New("beneficiary: quantity must be at least 1")
)

// Beneficiary is one row of the beneficiaries popup.
type Beneficiary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Age    string `json:"age"`
}

// Blank reports whether none of the person fields are filled in.
func (b Beneficiary) Blank() bool {
	return strings.TrimSpace(b.Name) == "" && strings.TrimSpace(b.Gender) == "" && strings.TrimSpace(b.Age) == ""
}

// Filled reports whether name, gender and age are all present.
func (b Beneficiary) Filled() bool {
	return strings.TrimSpace(b.Name) != "" && strings.TrimSpace(b.Gender) != "" && strings.TrimSpace(b.Age) != ""
}

// SamePerson compares the person fields, ignoring ID, case and surrounding spaces.
func (b Beneficiary) SamePerson(other Beneficiary) bool {
	return normalize(b.Name) == normalize(other.Name) &&
		normalize(b.Gender) == normalize(other.Gender) &&
		normalize(b.Age) == normalize(other.Age)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Patch carries optional field updates for Edit.
type Patch struct {
	Name   *string `json:"name,omitempty"`
	Gender *string `json:"gender,omitempty"`
	Age    *string `json:"age,omitempty"`
}

// Collector holds an ordered list of beneficiary rows bounded by a quantity.
// A collector always keeps at least one row.
type Collector struct {
	quantity int
	rows     []Beneficiary
	newID    func() string
}

// NewCollector builds a collector for quantity people seeded with initial rows.
// Rows beyond quantity are dropped and rows without an ID get one.
func NewCollector(quantity int, initial []Beneficiary) (*Collector, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	c := &Collector{quantity: quantity, newID: uuid.NewString}
	for _, b := range initial {
		if len(c.rows) == quantity {
			break
		}
		if strings.TrimSpace(b.ID) == "" {
			b.ID = c.newID()
		}
		c.rows = append(c.rows, b)
	}
	if len(c.rows) == 0 {
		c.rows = append(c.rows, Beneficiary{ID: c.newID()})
	}
	return c, nil
}

func (c *Collector) Quantity() int { return c.quantity }

// List returns a copy of the rows in order.
func (c *Collector) List() []Beneficiary {
	out := make([]Beneficiary, len(c.rows))
	copy(out, c.rows)
	return out
}

// Add appends a row. It fails once the list holds quantity rows.
func (c *Collector) Add(b Beneficiary) (Beneficiary, error) {
	if len(c.rows) >= c.quantity {
		return Beneficiary{}, ErrCapacityReached
	}
	b.ID = c.newID()
	c.rows = append(c.rows, b)
	return b, nil
}

// Remove deletes the row with id. Removing the only remaining row is a no-op.
func (c *Collector) Remove(id string) error {
	idx := c.index(id)
	if idx < 0 {
		return ErrNotFound
	}
	if len(c.rows) <= 1 {
		return nil
	}
	c.rows = append(c.rows[:idx], c.rows[idx+1:]...)
	return nil
}

// Edit applies the non-nil fields of p to the row with id.
func (c *Collector) Edit(id string, p Patch) (Beneficiary, error) {
	idx := c.index(id)
	if idx < 0 {
		return Beneficiary{}, ErrNotFound
	}
	row := &c.rows[idx]
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.Gender != nil {
		row.Gender = *p.Gender
	}
	if p.Age != nil {
		row.Age = *p.Age
	}
	return *row, nil
}

// Resize changes the quantity. Growing pads with empty rows; shrinking drops
// rows from the end.
func (c *Collector) Resize(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c.quantity = quantity
	if len(c.rows) > quantity {
		c.rows = c.rows[:quantity]
	}
	for len(c.rows) < quantity {
		c.rows = append(c.rows, Beneficiary{ID: c.newID()})
	}
	return nil
}

// Complete reports whether every row has name, gender and age.
func (c *Collector) Complete() bool {
	for _, b := range c.rows {
		if !b.Filled() {
			return false
		}
	}
	return true
}

func (c *Collector) index(id string) int {
	for i, b := range c.rows {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Rows is how many popup rows an order for quantity people keeps: one per
// person besides the primary, never fewer than one.
func Rows(quantity int) int {
	return max(quantity-1, 1)
}

// Partial reports whether any row is started but missing name, gender or age.
func Partial(rows []Beneficiary) bool {
	for _, b := range rows {
		if !b.Blank() && !b.Filled() {
			return true
		}
	}
	return false
}

// Additional returns the filled rows that are not the primary person, keeping
// the first occurrence of each repeated person.
func Additional(primary Beneficiary, rows []Beneficiary) []Beneficiary {
	var out []Beneficiary
	for _, b := range rows {
		if !b.Filled() || b.SamePerson(primary) {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen.SamePerson(b) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}
