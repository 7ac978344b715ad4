package main

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/persisted-map/internal/blobstore"
	"github.com/leonardcser/persisted-map/internal/config"
	"github.com/leonardcser/persisted-map/internal/logger"
	"github.com/leonardcser/persisted-map/internal/storage"
	tools "github.com/leonardcser/persisted-map/internal/tools"
)

const storeBinary = "persisted-map-store"

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting persisted-map MCP server")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Errorf("load config: %v", err)
		panic(err)
	}

	// Connect to store daemon; start it if needed, then connect.
	sock := cfg.StoreSocket
	logger.Infof("Attempting to connect to store daemon at %s", sock)
	durable, err := connectStore(sock)
	if err != nil {
		logger.Warnf("Failed to connect to store daemon: %v, attempting to start daemon", err)
		if startErr := startStoreDaemon(); startErr != nil {
			logger.Errorf("Failed to start store daemon: %v", startErr)
		} else {
			logger.Infof("Store daemon started successfully")
		}
		// wait for socket to appear
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if c2, err2 := connectStore(sock); err2 == nil {
				durable = c2
				err = nil
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
	}
	if durable == nil {
		// The session backend still works; map creation on durable reports
		// an unsupported backend.
		logger.Errorf("Durable storage unavailable after startup attempt: %v", err)
	} else {
		logger.Infof("Successfully connected to store daemon")
	}

	backends := blobstore.Backends{
		blobstore.Session: storage.NewMemory(cfg.SessionQuota),
	}
	if durable != nil {
		backends[blobstore.Durable] = durable
	}
	store := blobstore.New(backends)

	s := server.NewMCPServer(
		"Persisted Map",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")

	mapArg := mcp.WithString("map", mcp.Required(), mcp.Description("Name of the map (its storage slot)"))
	backendArg := mcp.WithString("backend",
		mcp.Description("Storage backend: \"durable\" (default, survives restarts) or \"session\" (lost when the server exits)"),
		mcp.Enum(blobstore.Durable, blobstore.Session),
	)
	keyArg := mcp.WithString("key", mcp.Required(), mcp.Description("Entry key"))

	s.AddTool(mcp.NewTool("map-put",
		mcp.WithDescription(multiline(
			"Stores a JSON value under a key in a persisted map",
			"\nUsage notes:",
			"- The value must be valid JSON text (quote strings: \"\\\"bar\\\"\")",
			"- ttl is a Go duration such as 90s or 15m; without it the server default applies",
			"- The whole map is rewritten on every put",
		)),
		mapArg, backendArg, keyArg,
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON value to store")),
		mcp.WithString("ttl", mcp.Description("Time to live, e.g. 10m; negative values store an already expired entry")),
	), tools.MapPutHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-get",
		mcp.WithDescription("Returns the JSON value stored under a key, or \"Not found.\" if it is absent or expired. Reading an expired entry deletes it."),
		mapArg, backendArg, keyArg,
	), tools.MapGetHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-remove",
		mcp.WithDescription("Removes a key from a persisted map"),
		mapArg, backendArg, keyArg,
	), tools.MapRemoveHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-keys",
		mcp.WithDescription("Lists the keys of a persisted map, one per line, including expired entries that have not been read yet"),
		mapArg, backendArg,
	), tools.MapKeysHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-size",
		mcp.WithDescription("Counts the keys of a persisted map"),
		mapArg, backendArg,
		mcp.WithBoolean("live", mcp.Description("Leave expired entries out of the count")),
	), tools.MapSizeHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-clear",
		mcp.WithDescription("Deletes a persisted map entirely"),
		mapArg, backendArg,
	), tools.MapClearHandler(store, cfg.DefaultTTL))

	s.AddTool(mcp.NewTool("map-sweep",
		mcp.WithDescription("Deletes every expired entry of a persisted map in one write"),
		mapArg, backendArg,
	), tools.MapSweepHandler(store, cfg.DefaultTTL))
	logger.Infof("Registered map tools")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func connectStore(sock string) (storage.Area, error) {
	// quick probe
	conn, err := net.DialTimeout("unix", sock, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	_ = conn.Close()
	return storage.NewClient(sock), nil
}

func startStoreDaemon() error {
	// 1) Try store binary next to this server executable (works with absolute invocation)
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), storeBinary)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return spawn(sibling)
		}
	}

	// 2) Try PATH binary
	if path, err := exec.LookPath(storeBinary); err == nil {
		return spawn(path)
	}

	// 3) Try local binary in current working directory (best-effort)
	if _, err := os.Stat("./" + storeBinary); err == nil {
		return spawn("./" + storeBinary)
	}

	return exec.ErrNotFound
}

func spawn(path string) error {
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = os.Environ()
	return cmd.Start()
}
