package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EveryEntryHasSizesOrTypes(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.False(t, c.Empty())

	for _, id := range c.CategoryIDs() {
		for _, name := range c.ProductNames(id) {
			e, ok := c.Product(id, name)
			require.True(t, ok)
			assert.NotEqual(t, len(e.Sizes) > 0, e.HasTypes(), "%s/%s", id, name)
		}
	}

	cat, ok := c.Category("products")
	require.True(t, ok)
	assert.Equal(t, "Products", cat.Name)
	assert.Equal(t, "products", cat.ID)
}

func TestParse_RejectsEntryWithBothSizesAndTypes(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  products:
    products:
      Bad:
        sizes: {"1g": 1}
        types: {"A": {"1g": 2}}
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEntry))
}

func TestParse_RejectsEntryWithNeither(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  products:
    products:
      Empty:
        allowCustom: g
`))
	assert.True(t, errors.Is(err, ErrInvalidEntry))
}

func TestParse_RejectsDanglingAlias(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  products:
    products:
      Ti:
        sizes: {"1g": 30}
aliases:
  - pattern: nope
    product: Missing
`))
	assert.True(t, errors.Is(err, ErrUnknownAlias))

	_, err = Parse([]byte(`
categories:
  products:
    products:
      Ti:
        sizes: {"1g": 30}
aliases:
  - pattern: tina
    product: Ti
    type: Gold
`))
	assert.True(t, errors.Is(err, ErrUnknownAlias))
}

func TestParse_EmptyCatalog(t *testing.T) {
	_, err := Parse([]byte(`categories: {}`))
	assert.True(t, errors.Is(err, ErrEmptyCatalog))
}

func TestParse_NameDefaultsToID(t *testing.T) {
	c, err := Parse([]byte(`
categories:
  extras:
    products:
      Pa:
        sizes: {"unit": 5}
`))
	require.NoError(t, err)
	cat, ok := c.Category("extras")
	require.True(t, ok)
	assert.Equal(t, "extras", cat.Name)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  products:
    name: Products
    products:
      Ti:
        sizes: {"1g": 30}
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	e, ok := c.Product("products", "Ti")
	require.True(t, ok)
	assert.Equal(t, 30.0, e.Sizes["1g"])

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestFindProduct(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	cat, name, e, ok := c.FindProduct("vi")
	require.True(t, ok)
	assert.Equal(t, "products", cat)
	assert.Equal(t, "Vi", name)
	assert.True(t, e.HasTypes())

	_, _, _, ok = c.FindProduct("Nothing")
	assert.False(t, ok)
}

func TestEntry_SizeTable(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	vi, _ := c.Product("products", "Vi")
	_, ok := vi.SizeTable("")
	assert.False(t, ok)
	sizes, ok := vi.SizeTable("Blue (100mg)")
	require.True(t, ok)
	assert.Equal(t, 10.0, sizes["unit"])

	ti, _ := c.Product("products", "Ti")
	sizes, ok = ti.SizeTable("")
	require.True(t, ok)
	assert.Len(t, sizes, 3)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.True(t, c.Empty())
	assert.Empty(t, c.CategoryIDs())
	_, ok := c.Product("products", "Ti")
	assert.False(t, ok)
	_, _, _, ok = c.FindProduct("Ti")
	assert.False(t, ok)
}
