package findmymeow

import (
	"context"
	"errors"
	"strconv"

	"github.com/hupe1980/findmymeow/idalloc"
	"github.com/hupe1980/findmymeow/metadata"
)

// ImageUpload is an image attached to a new post.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// pendingPostID stands in for the allocated id while validating.
const pendingPostID = "0"

// CreatePost stores a post. If img is set, the image is uploaded first and
// the post references it. The post id is allocated from the post_id
// namespace; ID, CreatedAt and UpdatedAt of p are ignored.
func (s *Service) CreatePost(ctx context.Context, p metadata.Post, img *ImageUpload) (metadata.Post, error) {
	p.ID = pendingPostID
	p.Image = nil
	if err := metadata.ValidatePost(p); err != nil {
		return metadata.Post{}, translateError(err)
	}

	var uploaded *metadata.ImageRecord
	if img != nil {
		rec, err := s.UploadImage(ctx, img.Filename, img.Data)
		if err != nil {
			return metadata.Post{}, err
		}
		uploaded = &rec
		ref := rec.Ref()
		p.Image = &ref
	}

	id, err := s.ids.NextID(ctx, idalloc.PostID)
	if err != nil {
		s.discardUpload(ctx, uploaded, err)
		return metadata.Post{}, translateError(err)
	}
	p.ID = strconv.FormatInt(id, 10)

	if err := s.meta.InsertPost(ctx, p); err != nil {
		s.discardUpload(ctx, uploaded, err)
		return metadata.Post{}, translateError(err)
	}

	created, err := s.meta.GetPost(ctx, p.ID)
	if err != nil {
		return p, nil
	}
	return created, nil
}

// discardUpload deletes an image uploaded for a post that was not created.
func (s *Service) discardUpload(ctx context.Context, rec *metadata.ImageRecord, cause error) {
	if rec == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.logger.WarnContext(ctx, "post creation failed, deleting uploaded image",
		"image_id", rec.ImageID,
		"error", cause,
	)

	if _, err := s.DeleteImage(ctx, rec.ImageID); err != nil {
		s.logger.LogOrphan(ctx, OrphanImageRecord, rec.ImageID, rec.IndexKey, err)
	}
}

// GetPost returns a post by id.
func (s *Service) GetPost(ctx context.Context, id string) (metadata.Post, error) {
	p, err := s.meta.GetPost(ctx, id)
	if err != nil {
		return metadata.Post{}, translateError(err)
	}
	return p, nil
}

// ListPosts returns up to metadata.DefaultLimit posts. An empty postType
// lists all types.
func (s *Service) ListPosts(ctx context.Context, postType string) ([]metadata.Post, error) {
	posts, err := s.meta.FindPosts(ctx, metadata.PostQuery{
		PostType: postType,
		Limit:    metadata.DefaultLimit,
	})
	if err != nil {
		return nil, translateError(err)
	}
	return posts, nil
}

// UpdatePost applies a partial update. An update without fields fails with
// ErrValidation.
func (s *Service) UpdatePost(ctx context.Context, id string, u metadata.PostUpdate) (metadata.Post, error) {
	if err := metadata.ValidateUpdate(u); err != nil {
		return metadata.Post{}, translateError(err)
	}

	p, err := s.meta.UpdatePost(ctx, id, u)
	if err != nil {
		return metadata.Post{}, translateError(err)
	}
	return p, nil
}

// DeletePost deletes a post and the image it references. The post record
// goes first; an image that is already gone is ignored.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	p, err := s.meta.GetPost(ctx, id)
	if err != nil {
		return translateError(err)
	}

	if err := s.meta.DeletePost(ctx, id); err != nil {
		return translateError(err)
	}

	if p.Image == nil || p.Image.ImageID == "" {
		return nil
	}

	if _, err := s.DeleteImage(ctx, p.Image.ImageID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		s.logger.LogOrphan(ctx, OrphanPostImageLink, p.Image.ImageID, p.Image.IndexKey, err)
		return err
	}
	return nil
}
