package tenant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"apps": [
			{"app_id": "posthub", "app_name": "PostHub", "product": "posts", "features": {"moderation": true}},
			{"app_id": "legacy", "app_name": "Legacy", "product": "legacy", "features": {"moderation": false}}
		]
	}`), 0o644))

	registry, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.True(t, registry.Exists("posthub"))
	assert.False(t, registry.Exists("unknown"))
	assert.Equal(t, "PostHub", registry.Get("posthub").AppName)
	assert.Nil(t, registry.Get("unknown"))
	assert.True(t, registry.HasFeature("posthub", "moderation"))
	assert.False(t, registry.HasFeature("legacy", "moderation"))
	assert.False(t, registry.HasFeature("unknown", "moderation"))
	assert.Len(t, registry.All(), 2)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/apps.json")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}
