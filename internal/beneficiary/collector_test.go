package beneficiary

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return strconv.Itoa(n)
	}
}

func newTestCollector(t *testing.T, quantity int, initial []Beneficiary) *Collector {
	t.Helper()
	c, err := NewCollector(quantity, nil)
	require.NoError(t, err)
	c.newID = sequentialIDs()
	c.rows = nil
	for _, b := range initial {
		b.ID = c.newID()
		c.rows = append(c.rows, b)
	}
	if len(c.rows) == 0 {
		c.rows = []Beneficiary{{ID: c.newID()}}
	}
	return c
}

func TestNewCollectorRejectsZeroQuantity(t *testing.T) {
	_, err := NewCollector(0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNewCollectorSeedsOneRowAndTrimsExcess(t *testing.T) {
	c, err := NewCollector(1, nil)
	require.NoError(t, err)
	require.Len(t, c.List(), 1)
	assert.NotEmpty(t, c.List()[0].ID)

	c, err = NewCollector(2, []Beneficiary{{Name: "A"}, {Name: "B"}, {Name: "C"}})
	require.NoError(t, err)
	assert.Len(t, c.List(), 2)
}

func TestAddBeyondQuantityRejected(t *testing.T) {
	c := newTestCollector(t, 2, []Beneficiary{{Name: "Asha", Gender: "female", Age: "30"}})
	added, err := c.Add(Beneficiary{Name: "Ravi", Gender: "male", Age: "33"})
	require.NoError(t, err)
	assert.Equal(t, "2", added.ID)

	_, err = c.Add(Beneficiary{Name: "Extra"})
	assert.ErrorIs(t, err, ErrCapacityReached)
	assert.Len(t, c.List(), 2)
}

func TestRemoveLastRowIsNoop(t *testing.T) {
	c := newTestCollector(t, 3, []Beneficiary{{Name: "Only"}})
	require.NoError(t, c.Remove("1"))
	require.Len(t, c.List(), 1)
	assert.Equal(t, "Only", c.List()[0].Name)

	assert.ErrorIs(t, c.Remove("missing"), ErrNotFound)
}

func TestRemoveKeepsOrder(t *testing.T) {
	c := newTestCollector(t, 3, []Beneficiary{{Name: "A"}, {Name: "B"}, {Name: "C"}})
	require.NoError(t, c.Remove("2"))
	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "C", list[1].Name)
}

func TestEditAppliesPatch(t *testing.T) {
	c := newTestCollector(t, 1, []Beneficiary{{Name: "A", Gender: "male", Age: "20"}})
	age := "21"
	got, err := c.Edit("1", Patch{Age: &age})
	require.NoError(t, err)
	assert.Equal(t, Beneficiary{ID: "1", Name: "A", Gender: "male", Age: "21"}, got)

	_, err = c.Edit("9", Patch{Age: &age})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResize(t *testing.T) {
	c := newTestCollector(t, 2, []Beneficiary{{Name: "A"}, {Name: "B"}})
	require.NoError(t, c.Resize(4))
	list := c.List()
	require.Len(t, list, 4)
	assert.True(t, list[3].Blank())
	assert.NotEqual(t, list[2].ID, list[3].ID)

	require.NoError(t, c.Resize(1))
	list = c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, 1, c.Quantity())

	assert.ErrorIs(t, c.Resize(0), ErrInvalidQuantity)
}

func TestComplete(t *testing.T) {
	c := newTestCollector(t, 2, []Beneficiary{{Name: "A", Gender: "male", Age: "20"}, {Name: "B"}})
	assert.False(t, c.Complete())
	g, a := "female", "31"
	_, err := c.Edit("2", Patch{Gender: &g, Age: &a})
	require.NoError(t, err)
	assert.True(t, c.Complete())
}

func TestListReturnsCopy(t *testing.T) {
	c := newTestCollector(t, 1, []Beneficiary{{Name: "A"}})
	list := c.List()
	list[0].Name = "changed"
	assert.Equal(t, "A", c.List()[0].Name)
}

func TestAdditionalElidesPrimaryAndDuplicates(t *testing.T) {
	primary := Beneficiary{Name: "Asha Rao", Gender: "female", Age: "30"}
	rows := []Beneficiary{
		{ID: "1", Name: " asha  rao ", Gender: "Female", Age: "30"},
		{ID: "2", Name: "Ravi Rao", Gender: "male", Age: "33"},
		{ID: "3"},
		{ID: "4", Name: "ravi rao", Gender: "MALE", Age: "33"},
		{ID: "5", Name: "Asha Rao", Gender: "female", Age: "58"},
	}
	got := Additional(primary, rows)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "5", got[1].ID)
}

func TestRows(t *testing.T) {
	assert.Equal(t, 1, Rows(0))
	assert.Equal(t, 1, Rows(1))
	assert.Equal(t, 1, Rows(2))
	assert.Equal(t, 4, Rows(5))
}

func TestPartial(t *testing.T) {
	assert.False(t, Partial([]Beneficiary{{ID: "1"}, {Name: "A", Gender: "male", Age: "3"}}))
	assert.True(t, Partial([]Beneficiary{{Name: "A", Gender: "male"}}))
}

func TestAdditionalSkipsHalfFilledRows(t *testing.T) {
	primary := Beneficiary{Name: "Asha Rao", Gender: "female", Age: "30"}
	got := Additional(primary, []Beneficiary{{ID: "1", Name: "Ravi Rao"}, {ID: "2", Name: "Meera", Gender: "female", Age: "9"}})
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}
