// Package artifactregistry reports which imported Python packages are hosted in
// a project's private Artifact Registry PYTHON repositories.
package artifactregistry

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Config selects the project and locations searched.
type Config struct {
	Project   string
	Locations []string
}

// Hosted links a dependency to the private package that serves it.
type Hosted struct {
	Dependency string `json:"dependency"`
	Package    string `json:"package"`
	Repository string `json:"repository"`
	Location   string `json:"location"`
}

// Provenance is the checker's output. Internal lists privately hosted
// dependencies, Public the rest.
type Provenance struct {
	Status              string   `json:"status"`
	Reason              string   `json:"reason,omitempty"`
	RepositoriesScanned int      `json:"repositories_scanned"`
	PackagesScanned     int      `json:"packages_scanned"`
	Internal            []Hosted `json:"internal"`
	Public              []string `json:"public"`
	Errors              []string `json:"errors,omitempty"`
}

// Checker matches dependency names against hosted package names.
type Checker struct {
	client    ARAPI
	project   string
	locations []string
	reason    string
}

// NewChecker creates a checker for the given Artifact Registry client.
func NewChecker(client ARAPI, project string, locations []string) *Checker {
	return &Checker{
		client:    client,
		project:   project,
		locations: locations,
	}
}

// New connects to Artifact Registry when a project and at least one location
// are configured. Otherwise the checker reports itself unavailable.
func New(ctx context.Context, cfg Config) *Checker {
	if cfg.Project == "" || len(cfg.Locations) == 0 {
		return &Checker{reason: "artifact registry project or locations not configured"}
	}
	client, err := NewClient(ctx)
	if err != nil {
		slog.Warn("Artifact Registry client not available", "error", err)
		return &Checker{reason: err.Error()}
	}
	return NewChecker(client, cfg.Project, cfg.Locations)
}

// Close releases the underlying client, if any.
func (c *Checker) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Check classifies each dependency as internal or public.
func (c *Checker) Check(ctx context.Context, deps []string) Provenance {
	if c.client == nil {
		return Provenance{Status: "unavailable", Reason: c.reason, Internal: []Hosted{}, Public: []string{}}
	}

	result := Provenance{Status: "ok", Internal: []Hosted{}, Public: []string{}}
	if len(deps) == 0 {
		return result
	}

	hosted := make(map[string]Hosted)
	for _, location := range c.locations {
		repos, err := c.client.ListRepositories(ctx, c.project, location)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", location, err))
			continue
		}
		result.RepositoriesScanned += len(repos)

		for _, repo := range repos {
			pkgs, err := c.client.ListPackages(ctx, repo.Name)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", repo.Location, repo.RepoID, err))
				continue
			}
			result.PackagesScanned += len(pkgs)
			for _, p := range pkgs {
				key := normalize(p.PackageID)
				if _, seen := hosted[key]; seen {
					continue
				}
				hosted[key] = Hosted{Package: p.PackageID, Repository: repo.RepoID, Location: repo.Location}
			}
		}
	}

	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	for _, dep := range sorted {
		if h, ok := hosted[normalize(dep)]; ok {
			h.Dependency = dep
			result.Internal = append(result.Internal, h)
			continue
		}
		result.Public = append(result.Public, dep)
	}

	slog.Debug("Package provenance checked",
		"dependencies", len(deps), "internal", len(result.Internal), "repositories", result.RepositoriesScanned)
	return result
}

var separators = regexp.MustCompile(`[-_.]+`)

// normalize applies PEP 503 name normalisation.
func normalize(name string) string {
	return separators.ReplaceAllString(strings.ToLower(name), "-")
}
