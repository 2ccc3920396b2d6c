package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/namelens/repolens/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryPath   = ":memory:"
	authTokenKey = "authToken"
)

// Store wraps the database connection for extracted project metadata,
// quota snapshots and run history.
type Store struct {
	DB     *sql.DB
	Clock  func() time.Time
	driver string
	loc    location
}

// location is where the store lives, resolved from StoreConfig.
type location struct {
	dsn    string
	file   string
	remote bool
}

func (l location) memory() bool { return l.dsn == memoryPath }

// String renders the location for logs, without credentials.
func (l location) String() string {
	switch {
	case l.file != "":
		return l.file
	case l.remote:
		parsed, err := url.Parse(l.dsn)
		if err != nil {
			return "remote"
		}
		query := parsed.Query()
		query.Del(authTokenKey)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	default:
		return l.dsn
	}
}

// Open connects to the configured store and verifies the connection.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	loc, err := resolveLocation(cfg)
	if err != nil {
		return nil, err
	}
	if loc.file != "" {
		if err := ensureParentDir(loc.file); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverLibsql, loc.dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", loc, err)
	}
	if loc.memory() {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %s: %w", loc, err)
	}

	return &Store{DB: db, driver: driver, loc: loc}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) now() time.Time {
	if s != nil && s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// CheckHealth pings the database. It backs the metrics server's readiness probe.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location describes where the store lives with any auth token removed.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.loc.String()
}

// resolveLocation prefers a remote URL over a local path. Plain paths are
// turned into file: DSNs.
func resolveLocation(cfg config.StoreConfig) (location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return location{}, err
		}
		return location{dsn: dsn, remote: true}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return location{}, errors.New("store path or url is required")
	case path == memoryPath:
		return location{dsn: memoryPath}, nil
	case strings.HasPrefix(path, "libsql:"):
		return location{dsn: path, remote: true}, nil
	case strings.HasPrefix(path, "file:"):
		file, err := fileFromDSN(path)
		if err != nil {
			return location{}, err
		}
		return location{dsn: path, file: file}, nil
	default:
		file := filepath.Clean(path)
		return location{dsn: "file:" + file, file: file}, nil
	}
}

// withAuthToken adds token to the DSN query unless one is already present.
func withAuthToken(dsn, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get(authTokenKey) != "" {
		return dsn, nil
	}
	query.Set(authTokenKey, token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func fileFromDSN(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	file := parsed.Path
	if file == "" {
		file = parsed.Opaque
	}
	return strings.TrimPrefix(file, "//"), nil
}

func ensureParentDir(file string) error {
	dir := filepath.Dir(filepath.Clean(file))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- the data directory is shared with other local tools
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
