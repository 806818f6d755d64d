package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Calle 1", Sanitize("  <b>Calle 1</b> "))
	assert.Equal(t, "", Sanitize("<script>alert(1)</script>"))
	assert.Nil(t, SanitizePtr(nil))
	assert.Equal(t, "x", *SanitizePtr(&[]string{"<i>x</i>"}[0]))
}

func TestSanitizeKeepsPunctuation(t *testing.T) {
	for _, in := range []string{
		"Calle 5 & 6",
		"Pedro O'Brien",
		`Edificio "La Torre"`,
		"saldo < 100",
		"&lt;b&gt; literal",
	} {
		assert.Equal(t, in, Sanitize(in), in)
	}
	assert.Equal(t, "Pedro O'Brien", Sanitize("<b>Pedro O'Brien</b>"))
}

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"fraude", "vip"}, DedupeAndTrim([]string{"  fraude ", "vip", "fraude", "", "  "}))
	assert.Empty(t, DedupeAndTrim(nil))
	assert.NotNil(t, DedupeAndTrim(nil))
}

func TestHasBlank(t *testing.T) {
	assert.True(t, HasBlank([]string{"vip", "  "}))
	assert.False(t, HasBlank([]string{"vip"}))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Difference([]string{"a", "b", "c"}, []string{"b"}))
	assert.Nil(t, Difference([]string{"a"}, []string{"a"}))
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "full_name", ToSnakeCase("FullName"))
	assert.Equal(t, "nit", ToSnakeCase("NIT"))
	assert.Equal(t, "trans_union_code", ToSnakeCase("TransUnionCode"))
}
