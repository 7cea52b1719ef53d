package findmymeow

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/indexstore"
	"github.com/hupe1980/findmymeow/metadata"
)

const (
	storedFilenamePrefix = "findmymeow_"
	defaultImageExt      = "jpg"
)

// UploadImage stores an image and makes it searchable.
//
// Steps run in order: embed, allocate index key, upload blob, add vectors
// to the index, insert the image record. An image without a detectable cat
// fails with ErrNoSubjectDetected before anything is written.
func (s *Service) UploadImage(ctx context.Context, filename string, data []byte) (rec metadata.ImageRecord, err error) {
	start := time.Now()
	vectorCount := 0
	defer func() {
		s.logger.LogIngest(ctx, rec.ImageID, vectorCount, err)
		s.metrics.RecordIngest(vectorCount, time.Since(start), err)
	}()

	if len(data) == 0 {
		return metadata.ImageRecord{}, fmt.Errorf("%w: image is empty", ErrValidation)
	}

	vectors, err := s.embed(ctx, data)
	if err != nil {
		return metadata.ImageRecord{}, err
	}
	vectorCount = len(vectors)

	key, err := s.ids.NextID(ctx, idalloc.ImageID)
	if err != nil {
		return metadata.ImageRecord{}, translateError(err)
	}

	stored := storedFilename(filename)
	blobKey := s.opts.imagePrefix + stored

	rec = metadata.ImageRecord{
		ImageID:        metadata.ImageIDFromIndexKey(key),
		StoredFilename: stored,
		StoragePath:    s.blobs.URI(blobKey),
		IndexKey:       key,
		CreatedAt:      s.opts.now().UTC(),
	}

	if err := s.blobs.Put(ctx, blobKey, data); err != nil {
		return metadata.ImageRecord{}, translateError(err)
	}

	if err := s.idx.Add(ctx, key, vectors); err != nil {
		s.undoAdd(ctx, key, blobKey, err)
		return metadata.ImageRecord{}, translateError(err)
	}

	if err := s.meta.InsertImage(ctx, rec); err != nil {
		s.undoInsert(ctx, key, blobKey, err)
		return metadata.ImageRecord{}, translateError(err)
	}

	return rec, nil
}

// undoAdd compensates a failed index add. A persist failure keeps the
// in-memory entry, so the key is removed before the blob is deleted.
func (s *Service) undoAdd(ctx context.Context, key int64, blobKey string, cause error) {
	ctx = context.WithoutCancel(ctx)

	if errors.Is(cause, indexstore.ErrPersistFailure) && s.idx.Contains(key) {
		if _, err := s.idx.Remove(ctx, key); err != nil {
			s.logger.LogOrphan(ctx, OrphanIndexEntry, metadata.ImageIDFromIndexKey(key), key, err)
		}
	}

	if err := s.blobs.Delete(ctx, blobKey); err != nil {
		s.logger.LogOrphan(ctx, OrphanBlob, blobKey, key, err)
	}
}

// undoInsert compensates a failed image record insert: remove the index
// entry, then delete the blob.
func (s *Service) undoInsert(ctx context.Context, key int64, blobKey string, cause error) {
	ctx = context.WithoutCancel(ctx)

	s.logger.WarnContext(ctx, "image record insert failed, compensating",
		"index_key", key,
		"error", cause,
	)

	if _, err := s.idx.Remove(ctx, key); err != nil {
		s.logger.LogOrphan(ctx, OrphanIndexEntry, metadata.ImageIDFromIndexKey(key), key, err)
	}

	if err := s.blobs.Delete(ctx, blobKey); err != nil {
		s.logger.LogOrphan(ctx, OrphanBlob, blobKey, key, err)
	}
}

// GetImage returns the record of an uploaded image.
func (s *Service) GetImage(ctx context.Context, imageID string) (metadata.ImageRecord, error) {
	rec, err := s.meta.GetImage(ctx, imageID)
	if err != nil {
		return metadata.ImageRecord{}, translateError(err)
	}
	return rec, nil
}

// DeleteImage removes an image from blob storage, the index and the
// metadata store, in that order. It returns the number of index vectors
// removed.
func (s *Service) DeleteImage(ctx context.Context, imageID string) (removed int, err error) {
	start := time.Now()
	defer func() {
		s.logger.LogDelete(ctx, imageID, removed, err)
		s.metrics.RecordDelete(time.Since(start), err)
	}()

	rec, err := s.meta.GetImage(ctx, imageID)
	if err != nil {
		return 0, translateError(err)
	}

	if err := s.blobs.Delete(ctx, s.opts.imagePrefix+rec.StoredFilename); err != nil {
		return 0, translateError(err)
	}

	removed, err = s.idx.Remove(ctx, rec.IndexKey)
	if err != nil {
		return removed, translateError(err)
	}

	if err := s.meta.DeleteImage(ctx, imageID); err != nil {
		s.logger.LogOrphan(ctx, OrphanImageRecord, imageID, rec.IndexKey, err)
		return removed, translateError(err)
	}

	return removed, nil
}

// storedFilename derives the blob name of an upload. Only the extension of
// the client filename is kept.
func storedFilename(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(filename)), "."))
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		ext = defaultImageExt
	}
	return storedFilenamePrefix + uuid.NewString() + "." + ext
}
