package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/mdr-library-backend/internal/data/db"
	"github.com/yungbote/mdr-library-backend/internal/data/repos"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

func TestMigrateSeedsSQLiteCatalogue(t *testing.T) {
	dir := t.TempDir()
	catalogue := filepath.Join(dir, "libraries.yaml")
	require.NoError(t, os.WriteFile(catalogue, []byte("libraries:\n  - name: Sponsor\n    is_editable: true\n  - name: CDISC\n"), 0o600))
	dbPath := filepath.Join(dir, "mdr.db")
	t.Setenv("MDR_STORE_BACKEND", "sqlite")
	t.Setenv("MDR_SQLITE_PATH", dbPath)

	rootCmd.SetArgs([]string{"migrate", "--libraries", catalogue})
	require.NoError(t, rootCmd.Execute())

	lite, err := db.NewSQLiteService(log, dbPath)
	require.NoError(t, err)
	defer lite.Close()
	libs, err := repos.NewLibraryRepo(lite.DB(), log).List(dbctx.New(t.Context()))
	require.NoError(t, err)
	require.Len(t, libs, 2)
}

func TestMigrateRejectsMemoryBackend(t *testing.T) {
	t.Setenv("MDR_STORE_BACKEND", "memory")
	seedFile = ""
	rootCmd.SetArgs([]string{"migrate"})
	require.Error(t, rootCmd.Execute())
}
