package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"miriesgo/pkg/validation"
)

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{Page: 0, Size: 500}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, validation.MaxPageSize, f.Size)
	assert.Equal(t, 0, f.Offset())

	f = ListFilter{Page: 3}
	f.Normalize()
	assert.Equal(t, validation.DefaultPageSize, f.Size)
	assert.Equal(t, 40, f.Offset())
}

func TestNewPage(t *testing.T) {
	p := NewPage(nil, 41, ListFilter{Page: 2, Size: 20})
	assert.Equal(t, 3, p.Pages)
	assert.Equal(t, 0, NewPage(nil, 0, ListFilter{Page: 1, Size: 20}).Pages)
}

func TestPatchApply(t *testing.T) {
	name := "Nueva"
	suspended := StatusSuspended
	c := &Company{Name: "Vieja", NIT: "900", Phone: "1", Status: StatusActive}
	p := Patch{Name: &name, Status: &suspended}
	assert.False(t, p.IsEmpty())
	p.Apply(c)
	assert.Equal(t, "Nueva", c.Name)
	assert.Equal(t, "1", c.Phone)
	assert.Equal(t, StatusSuspended, c.Status)
	assert.True(t, Patch{}.IsEmpty())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("inactive")
	assert.NoError(t, err)
	assert.Equal(t, StatusInactive, s)
	_, err = ParseStatus("closed")
	assert.Error(t, err)
}
