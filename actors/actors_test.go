package actors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/config"
)

func TestRegistryListsBuiltins(t *testing.T) {
	reg := Registry(config.Default())

	var ids []string
	for _, info := range reg.List() {
		ids = append(ids, info.ID)
		assert.NotEmpty(t, info.Name, info.ID)
	}
	assert.Equal(t, []string{Amazon, Apollo, GoogleBusiness, GoogleMaps, Website, WebsiteEnrichment}, ids)

	info, factory, ok := reg.Lookup(WebsiteEnrichment)
	require.True(t, ok)
	require.NotNil(t, factory)
	assert.Contains(t, info.Required, "places")

	_, _, ok = reg.Lookup("nonexistent-actor")
	assert.False(t, ok)
}
