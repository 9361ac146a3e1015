package storage

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI.
//
// Supported schemes:
//   - file:///var/lib/vns or file://./relative/path
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=...&path_style=true
//   - ipfs://host:5001/root?timeout=30s
//   - vault://host:8200/mount/path?tls=false (token from VAULT_TOKEN)
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch location.Scheme() {
	case interfaces.SchemeFile:
		return sf.createFileBackend(location)
	case interfaces.SchemeS3:
		return sf.createS3Backend(location)
	case interfaces.SchemeIPFS:
		return sf.createIPFSBackend(location)
	case interfaces.SchemeVault:
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme())
	}
}

// CreateMultiBackend creates a backend replicating to every location that
// could be set up. Locations that fail are logged and skipped.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path()
	if host := location.Host(); host != "" {
		path = host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, location)
	}

	sf.log.Debug("Creating file backend", slog.String("path", path))
	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	opts := S3Options{
		Bucket:    location.Host(),
		Prefix:    strings.TrimPrefix(location.Path(), "/"),
		Region:    location.Param("region"),
		Endpoint:  location.Param("endpoint"),
		PathStyle: location.Param("path_style") == "true",
	}
	opts.AccessKey, opts.SecretKey = location.Credentials()

	sf.log.Debug("Creating S3 backend",
		slog.String("bucket", opts.Bucket),
		slog.Bool("static_credentials", opts.AccessKey != ""))
	return NewS3Backend(opts, sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, found := strings.Cut(location.Host(), ":")
	if !found || port == "" {
		port = "5001"
	}
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host", interfaces.ErrInvalidLocationURI)
	}

	timeout := 30 * time.Second
	if raw := location.Param("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	sf.log.Debug("Creating IPFS backend", slog.String("host", host), slog.String("port", port))
	return NewIPFSBackend(host, port, location.Path(), timeout, sf.log)
}

func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host := location.Host()
	mount, dataPath, _ := strings.Cut(strings.Trim(location.Path(), "/"), "/")
	if host == "" || mount == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount[/path]", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if location.Param("tls") == "false" {
		scheme = "http"
	}

	sf.log.Debug("Creating Vault backend", slog.String("host", host), slog.String("mount", mount))
	return NewVaultBackend(scheme+"://"+host, mount, dataPath, os.Getenv("VAULT_TOKEN"), sf.log)
}
