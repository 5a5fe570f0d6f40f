package org

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Service resolves ancestor chains and descendant sets over the
// organization tree. It is a shared leaf dependency of the permission
// engine and the review trait resolver.
type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, orgID string) (Organization, error) {
	o, err := s.store.OrganizationByID(ctx, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return o, err
}

func (s *Service) List(ctx context.Context) ([]Organization, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *Service) Children(ctx context.Context, orgID string) ([]Organization, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}
	return s.store.ChildOrganizations(ctx, orgID)
}

func (s *Service) Create(ctx context.Context, name, level string, parentID *string) (string, error) {
	if parentID != nil {
		if _, err := s.Get(ctx, *parentID); err != nil {
			return "", err
		}
	}
	return s.store.CreateOrganization(ctx, name, level, parentID)
}

// AncestorChain returns [orgID, parent, ..., root]. A dangling parent
// reference ends the chain early rather than failing the caller.
func (s *Service) AncestorChain(ctx context.Context, orgID string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	current := orgID

	for depth := 0; depth < maxTreeDepth; depth++ {
		if seen[current] {
			return nil, ErrHierarchyCycle
		}
		seen[current] = true

		o, err := s.store.OrganizationByID(ctx, current)
		if errors.Is(err, pgx.ErrNoRows) {
			if len(chain) == 0 {
				return nil, ErrNotFound
			}
			slog.Warn("organization chain has dangling parent", "orgId", current)
			return chain, nil
		}
		if err != nil {
			return nil, err
		}

		chain = append(chain, o.ID)
		if o.ParentID == nil {
			return chain, nil
		}
		current = *o.ParentID
	}
	return nil, ErrHierarchyCycle
}

// Descendants returns orgID plus every transitive child.
func (s *Service) Descendants(ctx context.Context, orgID string) (map[string]bool, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}

	result := map[string]bool{orgID: true}
	queue := []string{orgID}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > maxTreeDepth*maxTreeDepth {
			return nil, ErrHierarchyCycle
		}
		current := queue[0]
		queue = queue[1:]

		children, err := s.store.ChildOrganizations(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if result[child.ID] {
				return nil, ErrHierarchyCycle
			}
			result[child.ID] = true
			queue = append(queue, child.ID)
		}
	}
	return result, nil
}

// AllOrganizationIDs lists every organization id, used by GLOBAL-scope
// visibility resolution.
func (s *Service) AllOrganizationIDs(ctx context.Context) ([]string, error) {
	return s.store.ListOrganizationIDs(ctx)
}

// DirectorateOf returns the id of the first DIRECTORATE-level ancestor
// of orgID (which may be orgID itself), or "" when the chain has none.
func (s *Service) DirectorateOf(ctx context.Context, orgID string) (string, error) {
	chain, err := s.AncestorChain(ctx, orgID)
	if err != nil {
		return "", err
	}
	for _, id := range chain {
		o, err := s.store.OrganizationByID(ctx, id)
		if err != nil {
			return "", err
		}
		if o.Level == LevelDirectorate {
			return o.ID, nil
		}
	}
	return "", nil
}
