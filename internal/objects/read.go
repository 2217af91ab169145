package objects

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/ident"
	"github.com/roach88/agora/internal/payload"
)

// Retrieve reads bucket/id.
//
// The file is size-checked before it is read and the read itself is
// bounded. The envelope must parse strictly, name the requested bucket and
// id, and carry a payload that passes the depth and reserved-key checks;
// anything else is CORRUPTION. A missing object is NOT_FOUND.
func (s *Store) Retrieve(ctx context.Context, bucket, id string) (StoredObject, error) {
	if err := validateRef("retrieve", bucket, id); err != nil {
		return StoredObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return StoredObject{}, errs.Storage("retrieve", bucket, id, err)
	}

	path, err := s.objectPath(bucket, id)
	if err != nil {
		return StoredObject{}, qualify(err, "retrieve", bucket, id)
	}
	return s.read(ctx, "retrieve", bucket, id, path)
}

// Exists reports whether bucket/id is stored. A missing object is false;
// any other I/O failure is an error.
func (s *Store) Exists(ctx context.Context, bucket, id string) (bool, error) {
	if err := validateRef("exists", bucket, id); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Storage("exists", bucket, id, err)
	}

	path, err := s.objectPath(bucket, id)
	if err != nil {
		return false, qualify(err, "exists", bucket, id)
	}
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errs.Storage("exists", bucket, id, err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns the ids stored in bucket in ascending order. A missing or
// empty bucket yields an empty list. Entries that are not regular .json
// files, or whose names fail id validation, are skipped.
func (s *Store) List(ctx context.Context, bucket string) ([]string, error) {
	entries, err := s.scan(ctx, "list", bucket)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Versions returns id → modification time in nanoseconds for every object
// in bucket, from a single directory listing.
func (s *Store) Versions(ctx context.Context, bucket string) (map[string]int64, error) {
	entries, err := s.scan(ctx, "versions", bucket)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]int64, len(entries))
	for _, e := range entries {
		info, err := e.entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errs.Storage("versions", bucket, e.id, err)
		}
		versions[e.id] = info.ModTime().UnixNano()
	}
	return versions, nil
}

type listed struct {
	id    string
	entry fs.DirEntry
}

// scan lists the object files of bucket.
func (s *Store) scan(ctx context.Context, op, bucket string) ([]listed, error) {
	if err := ident.ValidateBucket(bucket); err != nil {
		return nil, qualify(err, op, "", "")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Storage(op, bucket, "", err)
	}

	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, qualify(err, op, bucket, "")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []listed{}, nil
		}
		return nil, errs.Storage(op, bucket, "", err)
	}

	out := make([]listed, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ident.ValidateID(id) != nil {
			continue
		}
		out = append(out, listed{id: id, entry: e})
	}
	return out, nil
}

// read loads and re-validates the envelope at path.
func (s *Store) read(ctx context.Context, op, bucket, id, path string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, errs.Storage(op, bucket, id, err)
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StoredObject{}, errs.NotFound(op, bucket, id)
		}
		return StoredObject{}, errs.Storage(op, bucket, id, err)
	}
	if !info.Mode().IsRegular() {
		return StoredObject{}, errs.Corruption(op, bucket, id, "not a regular file", nil)
	}

	limit := int64(s.limits.MaxBytes) + envelopeOverhead
	if info.Size() > limit {
		return StoredObject{}, errs.Corruption(op, bucket, id, "file exceeds size bound", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StoredObject{}, errs.NotFound(op, bucket, id)
		}
		return StoredObject{}, errs.Storage(op, bucket, id, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return StoredObject{}, errs.Storage(op, bucket, id, err)
	}
	if int64(len(data)) > limit {
		return StoredObject{}, errs.Corruption(op, bucket, id, "file exceeds size bound", nil)
	}

	obj, err := unmarshalEnvelope(data, s.limits.MaxDepth)
	if err != nil {
		return StoredObject{}, errs.Corruption(op, bucket, id, err.Error(), err)
	}
	if obj.Bucket != bucket || obj.ID != id {
		return StoredObject{}, errs.Corruption(op, bucket, id, "envelope does not match bucket/id", nil)
	}
	if err := payload.CheckStructure(obj.Payload, s.limits); err != nil {
		return StoredObject{}, errs.Corruption(op, bucket, id, err.Error(), err)
	}

	return obj, nil
}
