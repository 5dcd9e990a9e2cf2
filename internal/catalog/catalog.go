// Package catalog is a client for the software catalog's location and entity
// endpoints.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/pagination"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/restclient"
)

const (
	locationTypeURL          = "url"
	originLocationAnnotation = "backstage.io/managed-by-origin-location"
)

// LocationPage is one page of registered locations.
type LocationPage struct {
	Locations  []model.Location
	TotalCount int
}

// Client talks to the catalog REST API.
type Client struct {
	rest            *restclient.Client
	staticLocations []string
	logger          *slog.Logger
}

// New returns a catalog client. staticLocations are reported with the
// "config" source next to the locations registered through the API.
func New(ctx context.Context, baseURL, token string, staticLocations []string) *Client {
	return &Client{
		rest:            restclient.New(ctx, "catalog", baseURL, token),
		staticLocations: staticLocations,
		logger:          slog.Default(),
	}
}

// WithLogger sets the logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}

	return c
}

type locationEnvelope struct {
	Data struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Target string `json:"target"`
	} `json:"data"`
}

type entity struct {
	Kind     string `json:"kind"`
	Metadata struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"metadata"`
}

func (e entity) ref() string {
	ns := e.Metadata.Namespace
	if ns == "" {
		ns = "default"
	}

	return fmt.Sprintf("%s:%s/%s", strings.ToLower(e.Kind), ns, e.Metadata.Name)
}

func (c *Client) registered(ctx context.Context) ([]model.Location, error) {
	var envelopes []locationEnvelope

	if err := c.rest.Do(ctx, http.MethodGet, "/locations", nil, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to list catalog locations: %w", err)
	}

	locations := make([]model.Location, 0, len(envelopes))

	for _, e := range envelopes {
		if e.Data.Type != "" && e.Data.Type != locationTypeURL {
			continue
		}

		locations = append(locations, model.Location{
			ID:     e.Data.ID,
			Target: e.Data.Target,
			Source: model.SourceLocation,
		})
	}

	return locations, nil
}

// ListLocations returns static and registered url locations whose target
// contains search. A non-positive size returns every match.
func (c *Client) ListLocations(ctx context.Context, search string, page, size int) (*LocationPage, error) {
	registered, err := c.registered(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]model.Location, 0, len(c.staticLocations)+len(registered))
	seen := make(map[string]bool, cap(all))

	for _, target := range c.staticLocations {
		if !seen[target] {
			seen[target] = true
			all = append(all, model.Location{Target: target, Source: model.SourceConfig})
		}
	}

	for _, loc := range registered {
		if !seen[loc.Target] {
			seen[loc.Target] = true
			all = append(all, loc)
		}
	}

	if search != "" {
		needle := strings.ToLower(search)
		filtered := all[:0]

		for _, loc := range all {
			if strings.Contains(strings.ToLower(loc.Target), needle) {
				filtered = append(filtered, loc)
			}
		}

		all = filtered
	}

	if size <= 0 {
		return &LocationPage{Locations: all, TotalCount: len(all)}, nil
	}

	p := pagination.Slice(all, page, size)

	return &LocationPage{Locations: p.Data, TotalCount: int(p.Total)}, nil
}

// FindLocation returns the location registered for target, or nil.
func (c *Client) FindLocation(ctx context.Context, target string) (*model.Location, error) {
	registered, err := c.registered(ctx)
	if err != nil {
		return nil, err
	}

	for _, loc := range registered {
		if loc.Target == target {
			return &loc, nil
		}
	}

	return nil, nil
}

// LocationExists reports whether target is registered or statically configured.
func (c *Client) LocationExists(ctx context.Context, target string) (bool, error) {
	for _, static := range c.staticLocations {
		if static == target {
			return true, nil
		}
	}

	loc, err := c.FindLocation(ctx, target)
	if err != nil {
		return false, err
	}

	return loc != nil, nil
}

// AddLocation registers target. An already registered target is not an error.
func (c *Client) AddLocation(ctx context.Context, target string) error {
	body := map[string]string{"type": locationTypeURL, "target": target}

	err := c.rest.Do(ctx, http.MethodPost, "/locations", body, nil)

	var upstream *model.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusConflict {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to register location %s: %w", target, err)
	}

	return nil
}

// DeleteLocationByID unregisters a location.
func (c *Client) DeleteLocationByID(ctx context.Context, id string) error {
	if err := c.rest.Do(ctx, http.MethodDelete, "/locations/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete location %s: %w", id, err)
	}

	return nil
}

// RefreshLocation asks the catalog to reprocess every entity that originates
// from target.
func (c *Client) RefreshLocation(ctx context.Context, target string) error {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf("metadata.annotations.%s=%s:%s", originLocationAnnotation, locationTypeURL, target))

	var entities []entity
	if err := c.rest.Do(ctx, http.MethodGet, "/entities?"+query.Encode(), nil, &entities); err != nil {
		return fmt.Errorf("failed to list entities of %s: %w", target, err)
	}

	for _, e := range entities {
		if err := c.rest.Do(ctx, http.MethodPost, "/refresh", map[string]string{"entityRef": e.ref()}, nil); err != nil {
			return fmt.Errorf("failed to refresh %s: %w", e.ref(), err)
		}
	}

	c.logger.Debug("refreshed catalog location", "target", target, "entities", len(entities))

	return nil
}

// EntityExists reports whether any entity is named name.
func (c *Client) EntityExists(ctx context.Context, name string) (bool, error) {
	query := url.Values{}
	query.Set("filter", "metadata.name="+name)
	query.Set("fields", "kind,metadata.name,metadata.namespace")

	var entities []entity
	if err := c.rest.Do(ctx, http.MethodGet, "/entities?"+query.Encode(), nil, &entities); err != nil {
		return false, fmt.Errorf("failed to look up entity %s: %w", name, err)
	}

	return len(entities) > 0, nil
}
