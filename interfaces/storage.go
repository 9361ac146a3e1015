package interfaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ContentID addresses a stored snapshot: the SHA-256 of its encoded bytes.
type ContentID [32]byte

// ComputeID returns the ID under which data is stored.
func ComputeID(data []byte) ContentID {
	return sha256.Sum256(data)
}

// ParseContentID accepts the hex form printed by String, with or without 0x.
func ParseContentID(s string) (ContentID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	if len(raw) != len(ContentID{}) {
		return ContentID{}, fmt.Errorf("invalid snapshot id %q: want 32 bytes, got %d", s, len(raw))
	}
	return ContentID(raw), nil
}

func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// ContentType namespaces stored objects within a backend.
type ContentType int

const (
	SnapshotType ContentType = iota
)

func (ct ContentType) String() string {
	if ct == SnapshotType {
		return "snapshot"
	}
	return "unknown"
}

// Schemes accepted in storage location URIs.
const (
	SchemeFile  = "file"
	SchemeS3    = "s3"
	SchemeIPFS  = "ipfs"
	SchemeVault = "vault"
)

// StorageBackendLocation is a parsed storage URI such as
// s3://KEY:SECRET@bucket/prefix?region=eu-west-1.
type StorageBackendLocation struct {
	uri *url.URL
}

func NewStorageBackendLocation(raw string) (StorageBackendLocation, error) {
	uri, err := url.Parse(raw)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch uri.Scheme {
	case SchemeFile, SchemeS3, SchemeIPFS, SchemeVault:
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, uri.Scheme)
	}
	return StorageBackendLocation{uri: uri}, nil
}

func (loc StorageBackendLocation) Scheme() string { return loc.url().Scheme }
func (loc StorageBackendLocation) Host() string   { return loc.url().Host }
func (loc StorageBackendLocation) Path() string   { return loc.url().Path }

// Credentials returns the user and password embedded in the URI, if any.
func (loc StorageBackendLocation) Credentials() (user, secret string) {
	info := loc.url().User
	if info == nil {
		return "", ""
	}
	secret, _ = info.Password()
	return info.Username(), secret
}

// Param returns the query parameter name, or "" when absent.
func (loc StorageBackendLocation) Param(name string) string {
	return loc.url().Query().Get(name)
}

// String returns the URI with any password redacted, safe for logs.
func (loc StorageBackendLocation) String() string {
	return loc.url().Redacted()
}

func (loc StorageBackendLocation) url() *url.URL {
	if loc.uri == nil {
		return &url.URL{}
	}
	return loc.uri
}

var (
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when no backend could serve the request.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend stores registrar snapshots by content ID. Implementations
// must return ErrContentNotFound for IDs they do not hold.
type StorageBackend interface {
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)
	Available(ctx context.Context) bool

	// Name identifies the backend in logs.
	Name() string
	LocationURI() string
}
