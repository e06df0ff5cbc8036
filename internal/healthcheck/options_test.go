package healthcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/coredevops/coredev/internal/errors"
)

var sampleOption = Option{
	ProcedureName: "check_invalid_objects",
	Users:         "PRM_APP01, PRM_APP02,",
	PLSQLBlock:    "BEGIN check_invalid_objects; END;",
}

func TestUserList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		users string
		want  []string
	}{
		{"A", []string{"A"}},
		{" A , B ", []string{"A", "B"}},
		{"A,,B,", []string{"A", "B"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Option{Users: tt.users}.UserList(), tt.users)
	}
}

func TestOptionStoreLifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Empty(t, s.Names())

	require.NoError(t, s.Add("Invalid objects", sampleOption))
	require.NoError(t, s.Add("Locks", Option{Users: "SYS", RunAsSysDBA: true, PLSQLBlock: "BEGIN NULL; END;"}))
	assert.Equal(t, []string{"Invalid objects", "Locks"}, s.Names())

	err = s.Add("Locks", sampleOption)
	assert.ErrorIs(t, err, ErrDuplicateOption)

	edited := sampleOption
	edited.OnlyLocal = true
	require.NoError(t, s.Edit("Invalid objects", edited))
	assert.ErrorIs(t, s.Edit("missing", edited), ErrOptionNotFound)

	reloaded, err := LoadOptions(path)
	require.NoError(t, err)
	got, err := reloaded.Get("Invalid objects")
	require.NoError(t, err)
	assert.True(t, got.OnlyLocal)
	assert.Equal(t, []string{"PRM_APP01", "PRM_APP02"}, got.UserList())

	locks, err := reloaded.Get("Locks")
	require.NoError(t, err)
	assert.True(t, locks.RunAsSysDBA)

	require.NoError(t, reloaded.Delete("Locks"))
	assert.ErrorIs(t, reloaded.Delete("Locks"), ErrOptionNotFound)
	_, err = reloaded.Get("Locks")
	assert.ErrorIs(t, err, ErrOptionNotFound)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAddRejectsIncompleteOption(t *testing.T) {
	t.Parallel()

	s, err := LoadOptions(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)

	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, s.Add("x", Option{Users: " , ", PLSQLBlock: "BEGIN NULL; END;"}), &cfgErr)
	assert.Equal(t, "users", cfgErr.Field)

	require.ErrorAs(t, s.Add("x", Option{Users: "A"}), &cfgErr)
	assert.Equal(t, "plsql_block", cfgErr.Field)

	require.ErrorAs(t, s.Add("  ", sampleOption), &cfgErr)
	assert.Equal(t, "name", cfgErr.Field)

	assert.Empty(t, s.Names())
}

func TestLoadOptionsRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"bad": {"users": "A"}}`), 0o600))

	_, err := LoadOptions(path)
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "healthcheck", cfgErr.Field)
	assert.Contains(t, cfgErr.Message, "plsql_block")
}
