package gw2api

import (
	"context"
	"slices"
)

// TokenInfo describes an API key as reported by the API.
type TokenInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the key grants a permission.
func (t TokenInfo) HasPermission(name string) bool {
	return slices.Contains(t.Permissions, name)
}

// TokenInfo returns information about an API key.
// An invalid key surfaces as [ErrUnauthorized].
func (c *Client) TokenInfo(ctx context.Context, key string) (*TokenInfo, error) {
	var t TokenInfo
	if err := c.get(ctx, "/tokeninfo", key, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
