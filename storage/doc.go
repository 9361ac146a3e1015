// Package storage persists registrar snapshots in content-addressed backends.
//
// Every backend stores a blob under its SHA-256 content ID and namespaces it by
// content type:
//
//   - file:///var/lib/vns                       local directory
//   - s3://bucket/prefix?region=eu-west-1       S3 or S3-compatible store
//   - ipfs://127.0.0.1:5001/vns                 IPFS node (pinned, linked in MFS)
//   - vault://vault.internal:8200/secret/vns    Vault KV v2, token from VAULT_TOKEN
//
// StorageBackendFactory builds a backend from such a URI, and CreateMultiBackend
// combines several of them: writes go to every available backend, reads are
// served by the first backend that has the content.
//
// SnapshotStore sits on top of any backend and handles the JSON encoding of
// interfaces.Snapshot:
//
//	factory := storage.NewStorageBackendFactory(log)
//	backend, err := factory.CreateMultiBackend(locations)
//	store := storage.NewSnapshotStore(backend, log)
//	id, err := store.Save(ctx, reg.Snapshot())
//	snap, err := store.Load(ctx, id)
package storage
