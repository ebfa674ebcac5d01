package artifactregistry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ar "cloud.google.com/go/artifactregistry/apiv1"
	arpb "cloud.google.com/go/artifactregistry/apiv1/artifactregistrypb"
	"google.golang.org/api/iterator"
)

// Repository represents a PYTHON-format Artifact Registry repository.
type Repository struct {
	Name     string // full resource name
	Location string
	RepoID   string
}

// Package represents a Python package hosted in a repository.
type Package struct {
	Name         string // full resource name
	PackageID    string
	DisplayName  string
	RepositoryID string
	UpdateTime   time.Time
}

// ARAPI defines the subset of the Artifact Registry API used by the checker.
type ARAPI interface {
	ListRepositories(ctx context.Context, project, location string) ([]Repository, error)
	ListPackages(ctx context.Context, parent string) ([]Package, error)
	Close() error
}

// Client implements ARAPI using the GCP SDK.
type Client struct {
	inner *ar.Client
}

// NewClient creates a new Artifact Registry client.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := ar.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create artifact registry client: %w", err)
	}
	return &Client{inner: c}, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.inner.Close()
}

// ListRepositories returns the Python repositories in a given location.
func (c *Client) ListRepositories(ctx context.Context, project, location string) ([]Repository, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", project, location)
	it := c.inner.ListRepositories(ctx, &arpb.ListRepositoriesRequest{
		Parent: parent,
	})

	var repos []Repository
	for {
		repo, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list repositories in %s: %w", parent, err)
		}
		if repo.GetFormat() != arpb.Repository_PYTHON {
			continue
		}
		repos = append(repos, Repository{
			Name:     repo.GetName(),
			Location: location,
			RepoID:   lastSegment(repo.GetName()),
		})
	}

	slog.Debug("Listed Python repositories", "location", location, "count", len(repos))
	return repos, nil
}

// ListPackages returns every package in a repository.
func (c *Client) ListPackages(ctx context.Context, parent string) ([]Package, error) {
	it := c.inner.ListPackages(ctx, &arpb.ListPackagesRequest{
		Parent: parent,
	})

	var pkgs []Package
	for {
		p, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list packages in %s: %w", parent, err)
		}

		var updated time.Time
		if p.GetUpdateTime() != nil {
			updated = p.GetUpdateTime().AsTime()
		}
		pkgs = append(pkgs, Package{
			Name:         p.GetName(),
			PackageID:    lastSegment(p.GetName()),
			DisplayName:  p.GetDisplayName(),
			RepositoryID: repoIDFromPackage(p.GetName()),
			UpdateTime:   updated,
		})
	}

	return pkgs, nil
}

// lastSegment returns the final path segment of a resource name.
func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// repoIDFromPackage extracts the repository ID from a package resource name.
// Format: projects/{project}/locations/{location}/repositories/{repo}/packages/{pkg}
func repoIDFromPackage(name string) string {
	before, _, ok := strings.Cut(name, "/packages/")
	if !ok {
		return ""
	}
	if !strings.Contains(before, "/") {
		return ""
	}
	return lastSegment(before)
}
