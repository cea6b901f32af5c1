package libraries

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	repolib "github.com/yungbote/mdr-library-backend/internal/data/repos/library"
	repotest "github.com/yungbote/mdr-library-backend/internal/data/repos/testutil"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

func TestStaticPolicy(t *testing.T) {
	ctx := context.Background()
	p := NewStaticPolicy(versioning.Library{Name: "Sponsor", IsEditable: true}, versioning.Library{Name: "CDISC"})

	lib, err := p.Resolve(ctx, " Sponsor ")
	require.NoError(t, err)
	require.Equal(t, versioning.Library{Name: "Sponsor", IsEditable: true}, lib)

	_, err = p.Resolve(ctx, "Nope")
	require.ErrorIs(t, err, aggregates.ErrUnknownLibrary)

	p.Set("CDISC", true)
	lib, err = p.Resolve(ctx, "CDISC")
	require.NoError(t, err)
	require.True(t, lib.IsEditable)

	require.Equal(t, []versioning.Library{{Name: "CDISC", IsEditable: true}, {Name: "Sponsor", IsEditable: true}}, p.List())
}

func TestParseCatalogue(t *testing.T) {
	libs, err := ParseCatalogue([]byte("libraries:\n  - name: Sponsor\n    is_editable: true\n  - name: CDISC\n"))
	require.NoError(t, err)
	require.Equal(t, []versioning.Library{{Name: "Sponsor", IsEditable: true}, {Name: "CDISC"}}, libs)

	_, err = ParseCatalogue([]byte("libraries:\n  - name: A\n  - name: A\n"))
	require.Error(t, err)
	_, err = ParseCatalogue([]byte("libraries:\n  - is_editable: true\n"))
	require.Error(t, err)
	_, err = ParseCatalogue([]byte("libraries: [\n"))
	require.Error(t, err)
}

func TestFilePolicyReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "libraries.yaml")
	require.NoError(t, os.WriteFile(path, []byte("libraries:\n  - name: Sponsor\n    is_editable: true\n"), 0o600))

	p, err := NewFilePolicy(path, nil)
	require.NoError(t, err)
	lib, err := p.Resolve(ctx, "Sponsor")
	require.NoError(t, err)
	require.True(t, lib.IsEditable)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("libraries:\n  - name: Sponsor\n    is_editable: false\n"), 0o600))
	require.Eventually(t, func() bool {
		lib, err := p.Resolve(ctx, "Sponsor")
		return err == nil && !lib.IsEditable
	}, 3*time.Second, 20*time.Millisecond)

	reloads := p.Reloads()
	require.NoError(t, os.WriteFile(path, []byte("libraries: [\n"), 0o600))
	time.Sleep(4 * reloadDebounce)
	_, err = p.Resolve(ctx, "Sponsor")
	require.NoError(t, err, "a broken catalogue must not replace the loaded one")
	require.Equal(t, reloads, p.Reloads())

	cancel()
	require.NoError(t, <-done)
}

func TestNewFilePolicyMissingFile(t *testing.T) {
	_, err := NewFilePolicy(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestRepoPolicy(t *testing.T) {
	ctx := context.Background()
	db := repotest.SQLite(t)
	p := NewRepoPolicy(repolib.NewLibraryRepo(db, repotest.Logger(t)))

	require.NoError(t, p.Seed(ctx, []versioning.Library{{Name: "Sponsor", IsEditable: true}, {Name: "CDISC"}}))
	lib, err := p.Resolve(ctx, "Sponsor")
	require.NoError(t, err)
	require.True(t, lib.IsEditable)

	require.NoError(t, p.Seed(ctx, []versioning.Library{{Name: "Sponsor"}}))
	lib, err = p.Resolve(ctx, "Sponsor")
	require.NoError(t, err)
	require.False(t, lib.IsEditable)

	_, err = p.Resolve(ctx, "Nope")
	require.ErrorIs(t, err, aggregates.ErrUnknownLibrary)
}

func TestRepoPolicyReadsThroughTransactionInContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db := repotest.SQLite(t)
	p := NewRepoPolicy(repolib.NewLibraryRepo(db, repotest.Logger(t)))
	require.NoError(t, p.Seed(ctx, []versioning.Library{{Name: "Sponsor", IsEditable: true}}))

	// The pool has a single connection; a read outside tx would wait for it.
	tx := repotest.Tx(t, db)
	require.NoError(t, tx.Exec("UPDATE library SET is_editable = ? WHERE name = ?", false, "Sponsor").Error)

	lib, err := p.Resolve(dbctx.WithTx(ctx, tx), "Sponsor")
	require.NoError(t, err)
	require.False(t, lib.IsEditable)
}
