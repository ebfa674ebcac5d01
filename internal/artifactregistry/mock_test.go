package artifactregistry

import (
	"context"
)

// mockARClient implements ARAPI for testing.
type mockARClient struct {
	repos       map[string][]Repository // keyed by "project/location"
	packages    map[string][]Package    // keyed by repo resource name
	listRepoErr map[string]error        // keyed by "project/location"
	listPkgErr  map[string]error        // keyed by repo resource name
	closed      bool
}

func newMockClient() *mockARClient {
	return &mockARClient{
		repos:       make(map[string][]Repository),
		packages:    make(map[string][]Package),
		listRepoErr: make(map[string]error),
		listPkgErr:  make(map[string]error),
	}
}

func (m *mockARClient) ListRepositories(_ context.Context, project, location string) ([]Repository, error) {
	key := project + "/" + location
	if err, ok := m.listRepoErr[key]; ok {
		return nil, err
	}
	return m.repos[key], nil
}

func (m *mockARClient) ListPackages(_ context.Context, parent string) ([]Package, error) {
	if err, ok := m.listPkgErr[parent]; ok {
		return nil, err
	}
	return m.packages[parent], nil
}

func (m *mockARClient) Close() error {
	m.closed = true
	return nil
}

func makeRepo(location, repoID string) Repository {
	return Repository{
		Name:     "projects/my-project/locations/" + location + "/repositories/" + repoID,
		Location: location,
		RepoID:   repoID,
	}
}

func makePackage(repo Repository, id string) Package {
	return Package{
		Name:         repo.Name + "/packages/" + id,
		PackageID:    id,
		RepositoryID: repo.RepoID,
	}
}
