package objects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
	"github.com/roach88/agora/internal/payload"
)

// StoreOption configures a single Store call.
type StoreOption func(*storeOptions)

type storeOptions struct {
	id string
}

// WithID stores the payload under an explicit id instead of its content
// hash. The id must pass the same allow-list as content ids.
func WithID(id string) StoreOption {
	return func(o *storeOptions) {
		o.id = id
	}
}

// Store persists v in bucket and returns its id.
//
// Checks run in order: bucket and explicit id allow-lists, nesting depth,
// reserved keys, text normalization, canonical serialization, canonical
// size. All of them run
// before any directory or file is created.
//
// Storing content that is already present under the id is a no-op and keeps
// the original stored_at. An explicit id that already holds different
// content is a CONFLICT.
func (s *Store) Store(ctx context.Context, bucket string, v payload.Value, opts ...StoreOption) (string, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	explicit := o.id != ""

	if err := ident.ValidateBucket(bucket); err != nil {
		return "", qualify(err, "store", "", "")
	}
	if explicit {
		if err := ident.ValidateID(o.id); err != nil {
			return "", qualify(err, "store", bucket, "")
		}
	}

	canonical, id, err := payload.Encode(v, s.limits)
	if err != nil {
		return "", invalidPayload("store", bucket, o.id, err)
	}
	if explicit {
		id = o.id
	}

	if err := ctx.Err(); err != nil {
		return "", errs.Storage("store", bucket, id, err)
	}

	path, err := s.objectPath(bucket, id)
	if err != nil {
		return "", qualify(err, "store", bucket, id)
	}

	existing, err := s.read(ctx, "store", bucket, id, path)
	switch {
	case err == nil:
		same, cmpErr := samePayload(existing.Payload, canonical)
		if cmpErr == nil && same {
			s.logger.Debug("object already stored", "bucket", bucket, "id", id)
			return id, nil
		}
		if explicit {
			return "", errs.Conflict("store", bucket, id, "id already holds different content")
		}
		// A content id whose file does not hash to it was tampered with.
		s.logger.Warn("rewriting object with mismatched content", "bucket", bucket, "id", id)
	case errs.IsNotFound(err):
	case errs.IsCorruption(err):
		if explicit {
			return "", errs.Conflict("store", bucket, id, "id already holds unreadable content")
		}
		s.logger.Warn("rewriting corrupt object", "bucket", bucket, "id", id)
	default:
		return "", err
	}

	data, err := marshalEnvelope(StoredObject{
		ID:       id,
		Bucket:   bucket,
		Payload:  v,
		StoredAt: s.now(),
	})
	if err != nil {
		return "", invalidPayload("store", bucket, id, err)
	}

	dir := filepath.Dir(path)
	if _, err := ident.ResolveWithinRoot(s.root, dir); err != nil {
		return "", qualify(err, "store", bucket, id)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errs.Storage("store", bucket, id, err)
	}
	if _, err := ident.ResolveWithinRoot(s.root, path); err != nil {
		return "", qualify(err, "store", bucket, id)
	}
	if err := WriteFileAtomic(path, data, filePerm); err != nil {
		return "", errs.Storage("store", bucket, id, err)
	}

	s.logger.Debug("object stored", "bucket", bucket, "id", id, "bytes", len(data))
	return id, nil
}

// Delete removes bucket/id. Deleting an object that does not exist succeeds.
func (s *Store) Delete(ctx context.Context, bucket, id string) error {
	if err := validateRef("delete", bucket, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.Storage("delete", bucket, id, err)
	}

	path, err := s.objectPath(bucket, id)
	if err != nil {
		return qualify(err, "delete", bucket, id)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Storage("delete", bucket, id, err)
	}

	s.logger.Debug("object deleted", "bucket", bucket, "id", id)
	return nil
}

// invalidPayload maps a payload check failure to a VALIDATION error.
// The cause stays reachable, so errors.Is(err, payload.ErrTooDeep) holds.
func invalidPayload(op, bucket, id string, err error) *errs.Error {
	return &errs.Error{
		Code:    errs.CodeValidation,
		Op:      op,
		Bucket:  bucket,
		ID:      id,
		Message: err.Error(),
		Err:     err,
	}
}

// samePayload reports whether v serializes to canonical.
func samePayload(v payload.Value, canonical []byte) (bool, error) {
	got, err := payload.MarshalCanonical(v)
	if err != nil {
		return false, err
	}
	return bytes.Equal(got, canonical), nil
}

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path. Readers see the old file or the new one,
// never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	success = true
	return nil
}
