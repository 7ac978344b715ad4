package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/persisted-map/internal/blobstore"
	"github.com/leonardcser/persisted-map/internal/persistedmap"
)

// openMap resolves the "map" and "backend" arguments to a map view.
func openMap(store *blobstore.Adapter, defaultTTL time.Duration, req mcp.CallToolRequest) (*persistedmap.Map, error) {
	name, err := req.RequireString("map")
	if err != nil {
		return nil, err
	}
	return persistedmap.Create(store, name, persistedmap.Options{
		Backend:    req.GetString("backend", blobstore.Durable),
		DefaultTTL: defaultTTL,
	})
}

// withMap runs fn against the requested map, turning every failure into a
// tool error result.
func withMap(store *blobstore.Adapter, defaultTTL time.Duration, fn func(*persistedmap.Map, mcp.CallToolRequest) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		m, err := openMap(store, defaultTTL, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := fn(m, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// MapPutHandler returns the MCP tool handler for the "map-put" tool.
func MapPutHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, req mcp.CallToolRequest) (string, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return "", err
		}
		value, err := req.RequireString("value")
		if err != nil {
			return "", err
		}
		if !json.Valid([]byte(value)) {
			return "", fmt.Errorf("value must be valid JSON")
		}
		if ttl := req.GetString("ttl", ""); ttl != "" {
			d, err := time.ParseDuration(ttl)
			if err != nil {
				return "", fmt.Errorf("invalid ttl: %w", err)
			}
			err = m.PutWithTTL(key, json.RawMessage(value), d)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Stored %q in %s (expires in %s).", key, m.Name(), d), nil
		}
		if err := m.Put(key, json.RawMessage(value)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Stored %q in %s.", key, m.Name()), nil
	})
}

// MapGetHandler returns the MCP tool handler for the "map-get" tool.
func MapGetHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, req mcp.CallToolRequest) (string, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return "", err
		}
		raw, ok, err := m.Get(key)
		if err != nil {
			return "", err
		}
		if !ok {
			return "Not found.", nil
		}
		return string(raw), nil
	})
}

// MapRemoveHandler returns the MCP tool handler for the "map-remove" tool.
func MapRemoveHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, req mcp.CallToolRequest) (string, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return "", err
		}
		if err := m.Remove(key); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed %q from %s.", key, m.Name()), nil
	})
}

// MapKeysHandler returns the MCP tool handler for the "map-keys" tool.
func MapKeysHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, _ mcp.CallToolRequest) (string, error) {
		keys := m.Keys()
		if len(keys) == 0 {
			return "No keys.", nil
		}
		return strings.Join(keys, "\n"), nil
	})
}

// MapSizeHandler returns the MCP tool handler for the "map-size" tool.
// With live=true, expired entries are left out of the count.
func MapSizeHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, req mcp.CallToolRequest) (string, error) {
		if req.GetBool("live", false) {
			return strconv.Itoa(m.LiveSize()), nil
		}
		return strconv.Itoa(m.Size()), nil
	})
}

// MapClearHandler returns the MCP tool handler for the "map-clear" tool.
func MapClearHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, _ mcp.CallToolRequest) (string, error) {
		if err := m.Clear(); err != nil {
			return "", err
		}
		return fmt.Sprintf("Cleared %s.", m.Name()), nil
	})
}

// MapSweepHandler returns the MCP tool handler for the "map-sweep" tool.
func MapSweepHandler(store *blobstore.Adapter, defaultTTL time.Duration) server.ToolHandlerFunc {
	return withMap(store, defaultTTL, func(m *persistedmap.Map, _ mcp.CallToolRequest) (string, error) {
		n, err := m.Sweep()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Swept %d expired entries from %s.", n, m.Name()), nil
	})
}
