// Package documents stores society documents: metadata in the domain store,
// content in the blob store under "<org>/documents/<id>/<file>".
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"societycore/internal/blob"
	blobcore "societycore/internal/blob/core"
	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// ErrUnsupported is returned for presigned URLs on drivers without them.
var ErrUnsupported = blobcore.ErrUnsupported

// Upload is the input of Service.Upload.
type Upload struct {
	Title       string
	Category    string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Service coordinates document records and their content.
type Service struct {
	svc   *core.Service
	store blob.Store
	lggr  logger.Logger
}

// New wires a documents service.
func New(svc *core.Service, store blob.Store) *Service {
	return &Service{svc: svc, store: store, lggr: svc.Logger().Named("documents")}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFileName reduces a client supplied name to a single path segment.
func SafeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}

// Key is the blob key of a document's content.
func Key(orgID, id, fileName string) string {
	return fmt.Sprintf("%s/documents/%s/%s", orgID, id, fileName)
}

// Upload writes the content then the record. If the record is rejected the
// content is removed again.
func (s *Service) Upload(ctx context.Context, scope domain.Scope, up Upload) (domain.Document, error) {
	if err := scope.RequireManager(); err != nil {
		return domain.Document{}, err
	}
	if err := scope.RequireOrganization(); err != nil {
		return domain.Document{}, err
	}
	problems := domain.ValidationErrors{}
	fileName := SafeFileName(up.FileName)
	if fileName == "" {
		problems.Add("file_name", "is required")
	}
	if domain.SanitizeText(up.Title) == "" {
		problems.Add("title", "is required")
	}
	if up.Body == nil {
		problems.Add("file", "is required")
	}
	if err := problems.Err(); err != nil {
		return domain.Document{}, err
	}

	id := uuid.NewString()
	key := Key(scope.OrganizationID, id, fileName)
	info, err := s.store.Put(ctx, key, up.Body, blobcore.PutOptions{
		ContentType: up.ContentType,
		Metadata:    map[string]string{"organization_id": scope.OrganizationID, "uploaded_by": scope.ActorID},
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("store content: %w", err)
	}
	doc, _, err := s.svc.CreateDocument(ctx, scope, domain.Document{
		Base:           domain.Base{ID: id},
		OrganizationID: scope.OrganizationID,
		Title:          up.Title,
		Category:       up.Category,
		FileName:       fileName,
		BlobKey:        key,
		ContentType:    info.ContentType,
		SizeBytes:      info.Size,
	})
	if err != nil {
		if _, delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.lggr.Warnw("orphaned document content", "key", key, "err", delErr)
		}
		return domain.Document{}, err
	}
	return doc, nil
}

// Get returns a document record.
func (s *Service) Get(ctx context.Context, scope domain.Scope, id string) (domain.Document, error) {
	return s.svc.GetDocument(ctx, scope, id)
}

// Download opens the content. The caller closes the reader.
func (s *Service) Download(ctx context.Context, scope domain.Scope, id string) (domain.Document, io.ReadCloser, error) {
	doc, err := s.svc.GetDocument(ctx, scope, id)
	if err != nil {
		return domain.Document{}, nil, err
	}
	_, rc, err := s.store.Get(ctx, doc.BlobKey)
	if errors.Is(err, blobcore.ErrNotFound) {
		return domain.Document{}, nil, fmt.Errorf("%w: content of document %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Document{}, nil, err
	}
	return doc, rc, nil
}

// URL returns a presigned download link; fs and memory drivers return ErrUnsupported.
func (s *Service) URL(ctx context.Context, scope domain.Scope, id string) (string, error) {
	doc, err := s.svc.GetDocument(ctx, scope, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignURL(ctx, doc.BlobKey, blobcore.SignedURLOptions{Method: "GET"})
}

// Delete removes the record, then the content. Missing content is only logged.
func (s *Service) Delete(ctx context.Context, scope domain.Scope, id string) error {
	doc, err := s.svc.GetDocument(ctx, scope, id)
	if err != nil {
		return err
	}
	if _, err := s.svc.DeleteDocument(ctx, scope, id); err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, doc.BlobKey)
	if err != nil || !ok {
		s.lggr.Warnw("document content not removed", "document_id", id, "key", doc.BlobKey, "err", err)
	}
	return nil
}

// List returns documents matching q.
func (s *Service) List(ctx context.Context, scope domain.Scope, q listing.Query) ([]domain.Document, error) {
	docs, err := s.svc.ListDocuments(ctx, scope)
	if err != nil {
		return nil, err
	}
	return listing.Documents.Apply(docs, q)
}
