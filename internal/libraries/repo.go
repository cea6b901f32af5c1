package libraries

import (
	"context"
	"slices"
	"strings"

	repolib "github.com/yungbote/mdr-library-backend/internal/data/repos/library"
	types "github.com/yungbote/mdr-library-backend/internal/domain/library"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

// RepoPolicy reads the library table on every call. Inside a unit of work
// the read goes through the transaction attached to ctx.
type RepoPolicy struct {
	repo repolib.LibraryRepo
}

func NewRepoPolicy(repo repolib.LibraryRepo) *RepoPolicy {
	return &RepoPolicy{repo: repo}
}

func (p *RepoPolicy) Resolve(ctx context.Context, name string) (versioning.Library, error) {
	name = strings.TrimSpace(name)
	row, err := p.repo.GetByName(dbctx.FromContext(ctx), name)
	if err != nil {
		return versioning.Library{}, err
	}
	if row == nil {
		return versioning.Library{}, unknown(name)
	}
	return versioning.Library{Name: row.Name, IsEditable: row.IsEditable}, nil
}

// Seed upserts libs into the library table.
func (p *RepoPolicy) Seed(ctx context.Context, libs []versioning.Library) error {
	rows := make([]*types.Library, 0, len(libs))
	for _, l := range libs {
		rows = append(rows, &types.Library{Name: l.Name, IsEditable: l.IsEditable})
	}
	return p.repo.Upsert(dbctx.New(ctx), rows)
}

func sortLibraries(libs []versioning.Library) {
	slices.SortFunc(libs, func(a, b versioning.Library) int { return strings.Compare(a.Name, b.Name) })
}
