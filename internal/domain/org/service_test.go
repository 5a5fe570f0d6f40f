package org

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type fakeStore struct {
	orgs map[string]Organization
}

func (f *fakeStore) OrganizationByID(ctx context.Context, orgID string) (Organization, error) {
	o, ok := f.orgs[orgID]
	if !ok {
		return Organization{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) ChildOrganizations(ctx context.Context, orgID string) ([]Organization, error) {
	var children []Organization
	for _, o := range f.orgs {
		if o.ParentID != nil && *o.ParentID == orgID {
			children = append(children, o)
		}
	}
	return children, nil
}

func (f *fakeStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var out []Organization
	for _, o := range f.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range f.orgs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) CreateOrganization(ctx context.Context, name, level string, parentID *string) (string, error) {
	id := name
	f.orgs[id] = Organization{ID: id, Name: name, Level: level, ParentID: parentID, CreatedAt: time.Now()}
	return id, nil
}

func ptr(s string) *string { return &s }

func treeStore() *fakeStore {
	return &fakeStore{orgs: map[string]Organization{
		"global": {ID: "global", Level: LevelGlobal},
		"dirA":   {ID: "dirA", Level: LevelDirectorate, ParentID: ptr("global")},
		"dirB":   {ID: "dirB", Level: LevelDirectorate, ParentID: ptr("global")},
		"deptA":  {ID: "deptA", Level: LevelDepartment, ParentID: ptr("dirA")},
		"unitA":  {ID: "unitA", Level: LevelUnit, ParentID: ptr("deptA")},
		"unitB":  {ID: "unitB", Level: LevelUnit, ParentID: ptr("dirB")},
	}}
}

func TestAncestorChain(t *testing.T) {
	svc := NewService(treeStore())

	chain, err := svc.AncestorChain(context.Background(), "unitA")
	if err != nil {
		t.Fatalf("ancestor chain failed: %v", err)
	}
	want := []string{"unitA", "deptA", "dirA", "global"}
	if len(chain) != len(want) {
		t.Fatalf("expected chain %v, got %v", want, chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("expected chain %v, got %v", want, chain)
		}
	}
}

func TestAncestorChainUnknownOrg(t *testing.T) {
	svc := NewService(treeStore())
	if _, err := svc.AncestorChain(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAncestorChainDanglingParentFailsClosed(t *testing.T) {
	store := treeStore()
	o := store.orgs["deptA"]
	o.ParentID = ptr("gone")
	store.orgs["deptA"] = o

	svc := NewService(store)
	chain, err := svc.AncestorChain(context.Background(), "unitA")
	if err != nil {
		t.Fatalf("dangling parent should yield partial chain, got %v", err)
	}
	if len(chain) != 2 || chain[0] != "unitA" || chain[1] != "deptA" {
		t.Fatalf("expected partial chain [unitA deptA], got %v", chain)
	}
}

func TestAncestorChainDetectsCycle(t *testing.T) {
	store := treeStore()
	g := store.orgs["global"]
	g.ParentID = ptr("unitA")
	store.orgs["global"] = g

	svc := NewService(store)
	if _, err := svc.AncestorChain(context.Background(), "unitA"); !errors.Is(err, ErrHierarchyCycle) {
		t.Fatalf("expected ErrHierarchyCycle, got %v", err)
	}
}

func TestDescendants(t *testing.T) {
	svc := NewService(treeStore())

	desc, err := svc.Descendants(context.Background(), "dirA")
	if err != nil {
		t.Fatalf("descendants failed: %v", err)
	}
	for _, id := range []string{"dirA", "deptA", "unitA"} {
		if !desc[id] {
			t.Fatalf("expected %s in descendants, got %v", id, desc)
		}
	}
	if desc["unitB"] || desc["global"] {
		t.Fatalf("descendants leaked outside subtree: %v", desc)
	}
}

func TestDescendantsOfLeafIsSelf(t *testing.T) {
	svc := NewService(treeStore())

	desc, err := svc.Descendants(context.Background(), "unitA")
	if err != nil {
		t.Fatalf("descendants failed: %v", err)
	}
	if len(desc) != 1 || !desc["unitA"] {
		t.Fatalf("expected {unitA}, got %v", desc)
	}
}

func TestDirectorateOf(t *testing.T) {
	svc := NewService(treeStore())

	dir, err := svc.DirectorateOf(context.Background(), "unitA")
	if err != nil {
		t.Fatalf("directorate lookup failed: %v", err)
	}
	if dir != "dirA" {
		t.Fatalf("expected dirA, got %q", dir)
	}

	dir, err = svc.DirectorateOf(context.Background(), "global")
	if err != nil {
		t.Fatalf("directorate lookup failed: %v", err)
	}
	if dir != "" {
		t.Fatalf("expected no directorate for global, got %q", dir)
	}
}
