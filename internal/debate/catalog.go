package debate

import (
	"context"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
)

// ReindexResult summarizes a catalog rebuild.
type ReindexResult struct {
	Indexed int `json:"indexed"`

	// Skipped lists "bucket/id" for records that could not be read or
	// decoded. They stay in the store but are absent from the catalog.
	Skipped []string `json:"skipped"`
}

// catalog records bucket/id, as now stored, in the catalog.
func (s *Service) catalog(ctx context.Context, op, bucket, id string) error {
	obj, err := s.objects.Retrieve(ctx, bucket, id)
	if err != nil {
		return err
	}
	entry, err := entryFor(obj)
	if err != nil {
		return corrupt(err, obj)
	}
	if err := s.index.PutRecord(ctx, entry); err != nil {
		return catalogError(op, err)
	}
	return nil
}

// entryFor extracts the catalog metadata of a stored object. Objects in
// buckets without a record type are catalogued by bucket and id alone.
func entryFor(obj objects.StoredObject) (index.Entry, error) {
	e := index.Entry{ID: obj.ID, Bucket: obj.Bucket, StoredAt: obj.StoredAt}

	switch obj.Bucket {
	case objects.BucketAgents:
		if _, err := AgentFromPayload(obj.Payload); err != nil {
			return index.Entry{}, err
		}

	case objects.BucketSimulations:
		sim, err := SimulationFromPayload(obj.Payload)
		if err != nil {
			return index.Entry{}, err
		}
		e.Participants = sim.Participants

	case objects.BucketArguments:
		a, err := ArgumentFromPayload(obj.Payload)
		if err != nil {
			return index.Entry{}, err
		}
		e.Kind = string(a.Kind)
		e.AgentID = a.AgentID
		e.SessionID = a.SessionID
		e.TargetID = a.TargetID
		e.Subtype = a.Subtype
		e.Structure = string(a.Structure)
	}
	return e, nil
}

// Reindex rebuilds the catalog from the object store.
//
// Each bucket is refreshed in the record cache first, so objects changed on
// disk since they were cached are re-read. Unreadable records are logged and
// reported in the result rather than failing the rebuild.
func (s *Service) Reindex(ctx context.Context) (ReindexResult, error) {
	const op = "reindex"

	s.mu.Lock()
	defer s.mu.Unlock()

	res := ReindexResult{Skipped: []string{}}
	if err := s.index.Reset(ctx); err != nil {
		return res, catalogError(op, err)
	}

	for _, bucket := range objects.DefaultBuckets {
		stale, err := s.cache.Refresh(ctx, bucket)
		if err != nil {
			return res, err
		}
		if len(stale) > 0 {
			s.logger.Debug("cache entries invalidated", "bucket", bucket, "count", len(stale))
		}

		ids, err := s.objects.List(ctx, bucket)
		if err != nil {
			return res, err
		}
		for _, id := range ids {
			err := s.reindexOne(ctx, bucket, id)
			switch {
			case err == nil:
				res.Indexed++
			case errs.IsCorruption(err) || errs.IsNotFound(err):
				s.logger.Warn("record skipped", "bucket", bucket, "id", id, "error", err)
				res.Skipped = append(res.Skipped, bucket+"/"+id)
			default:
				return res, err
			}
		}
	}

	s.logger.Info("catalog rebuilt", "indexed", res.Indexed, "skipped", len(res.Skipped))
	return res, nil
}

func (s *Service) reindexOne(ctx context.Context, bucket, id string) error {
	if err := ctx.Err(); err != nil {
		return errs.Storage("reindex", bucket, id, err)
	}
	obj, err := s.cache.Get(ctx, bucket, id)
	if err != nil {
		return err
	}
	entry, err := entryFor(obj)
	if err != nil {
		return corrupt(err, obj)
	}
	if err := s.index.PutRecord(ctx, entry); err != nil {
		return catalogError("reindex", err)
	}
	return nil
}
