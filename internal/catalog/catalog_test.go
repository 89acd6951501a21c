package catalog_test

import (
	"testing"

	"template-store/internal/catalog"

	"github.com/stretchr/testify/assert"
)

func TestLookupKnownBundles(t *testing.T) {
	starter, err := catalog.Lookup("starter")
	assert.NoError(t, err)
	assert.Equal(t, "Starter Pack", starter.Name)
	assert.Equal(t, int64(1299), starter.Amount)
	assert.Equal(t, 3, starter.Count)

	single, err := catalog.Lookup("single")
	assert.NoError(t, err)
	assert.Equal(t, 1, single.Count)
}

func TestLookupUnknownBundle(t *testing.T) {
	_, err := catalog.Lookup("mega")
	assert.ErrorIs(t, err, catalog.ErrUnknownBundle)

	_, err = catalog.Lookup("")
	assert.ErrorIs(t, err, catalog.ErrUnknownBundle)
}

func TestAllIsStableAndComplete(t *testing.T) {
	all := catalog.All()
	assert.Len(t, all, 4)
	assert.Equal(t, "single", all[0].ID)
	assert.Equal(t, "complete", all[3].ID)

	// Every listed bundle must resolve through Lookup
	for _, b := range all {
		found, err := catalog.Lookup(b.ID)
		assert.NoError(t, err)
		assert.Equal(t, b, found)
	}
}
