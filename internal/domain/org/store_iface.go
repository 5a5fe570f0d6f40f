package org

import "context"

type StoreAPI interface {
	OrganizationByID(ctx context.Context, orgID string) (Organization, error)
	ChildOrganizations(ctx context.Context, orgID string) ([]Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListOrganizationIDs(ctx context.Context) ([]string, error)
	CreateOrganization(ctx context.Context, name, level string, parentID *string) (string, error)
}
