package org

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) OrganizationByID(ctx context.Context, orgID string) (Organization, error) {
	var o Organization
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, level, parent_id, created_at
    FROM organizations
    WHERE id = $1
  `, orgID).Scan(&o.ID, &o.Name, &o.Level, &o.ParentID, &o.CreatedAt)
	return o, err
}

func (s *Store) ChildOrganizations(ctx context.Context, orgID string) ([]Organization, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, level, parent_id, created_at
    FROM organizations
    WHERE parent_id = $1
    ORDER BY name
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Level, &o.ParentID, &o.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *Store) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, level, parent_id, created_at
    FROM organizations
    ORDER BY level, name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Level, &o.ParentID, &o.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *Store) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM organizations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateOrganization(ctx context.Context, name, level string, parentID *string) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO organizations (name, level, parent_id)
    VALUES ($1,$2,$3)
    RETURNING id
  `, name, level, parentID).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
