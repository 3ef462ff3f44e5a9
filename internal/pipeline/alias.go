package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/identity"
)

// AddAlias validates alias and saves it for chapterID. It applies to the
// next rebuild; stored reports are not touched.
func (s *Service) AddAlias(ctx context.Context, chapterID string, alias identity.Alias) error {
	checked, err := identity.NewAliases([]identity.Alias{alias})
	if err != nil {
		return err
	}
	return s.store.SaveAlias(ctx, chapterID, checked.List()[0])
}

// RemoveAlias deletes the alias for rawName.
func (s *Service) RemoveAlias(ctx context.Context, chapterID, rawName string) error {
	return s.store.DeleteAlias(ctx, chapterID, rawName)
}

// Aliases returns the effective alias table for chapterID.
func (s *Service) Aliases(ctx context.Context, chapterID string) ([]identity.Alias, error) {
	aliases, err := s.aliases(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	return aliases.List(), nil
}

func (s *Service) aliases(ctx context.Context, chapterID string) (identity.Aliases, error) {
	stored, err := s.store.ListAliases(ctx, chapterID)
	if err != nil {
		return identity.Aliases{}, eris.Wrapf(err, "pipeline: load aliases for %s", chapterID)
	}

	merged := make(map[string]identity.Alias, s.opts.Aliases.Len()+len(stored))
	for _, a := range s.opts.Aliases.List() {
		merged[a.RawName] = a
	}
	for _, a := range stored {
		merged[a.RawName] = a
	}
	list := make([]identity.Alias, 0, len(merged))
	for _, a := range merged {
		list = append(list, a)
	}
	return identity.NewAliases(list)
}
