package access

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/clearance/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParse_CustomRoles(t *testing.T) {
	doc := `
users:
  Nina:
    role: legal
roles:
  legal: [legal_docs, general_docs]
`
	file, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	registry, err := file.Registry()
	require.NoError(t, err)

	role, err := registry.Authorize("nina")
	require.NoError(t, err)
	assert.Equal(t, core.Role("legal"), role)
	assert.Equal(t, []core.CollectionID{"legal_docs", "general_docs"}, registry.CollectionsFor(role))
	assert.Empty(t, registry.CollectionsFor(RoleFinance), "custom roles replace the defaults")
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("groups: {}\n"))
	assert.ErrorIs(t, err, ErrInvalidAccessFile)
}

func TestLoad(t *testing.T) {
	t.Run("defaults without path", func(t *testing.T) {
		registry, auth, err := Load("")
		require.NoError(t, err)
		assert.Len(t, registry.Users(), 6)
		assert.False(t, auth.HasCredentials())
	})

	t.Run("file with credentials and default roles", func(t *testing.T) {
		hash, err := HashPassword("pipeline", bcrypt.MinCost)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "access.yaml")
		content := "users:\n  dave:\n    role: engineering\n    password_hash: \"" + hash + "\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		registry, auth, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"dave"}, registry.Users())

		role, err := auth.Authenticate("dave", "pipeline")
		require.NoError(t, err)
		assert.Equal(t, RoleEngineering, role)
		assert.Equal(t, []core.CollectionID{"engineering_docs", "general_docs"}, registry.CollectionsFor(role))
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
