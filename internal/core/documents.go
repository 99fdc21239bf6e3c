package core

import (
	"context"

	"societycore/pkg/domain"
)

var documents = resource[domain.Document]{
	entity: domain.EntityDocument,
	table:  func(tx Transaction) domain.Table[domain.Document] { return tx.Documents() },
	view:   func(v TransactionView) domain.ReadTable[domain.Document] { return v.Documents() },
	prepare: func(_ TransactionView, scope domain.Scope, d *domain.Document) error {
		defaultOrg(scope, &d.OrganizationID)
		if d.UploadedBy == "" {
			d.UploadedBy = scope.ActorID
		}
		problems := domain.ValidationErrors{}
		d.Title = domain.SanitizeText(d.Title)
		d.Category = defaultCategory(d.Category)
		if d.Title == "" {
			problems.Add("title", "is required")
		}
		if d.FileName == "" {
			problems.Add("file_name", "is required")
		}
		if d.BlobKey == "" {
			problems.Add("blob_key", "is required")
		}
		if d.SizeBytes < 0 {
			problems.Add("size_bytes", "must not be negative")
		}
		return problems.Err()
	},
	canWrite: managerOnly[domain.Document],
}

// CreateDocument stores document metadata. Content is written to the blob store by the caller.
func (s *Service) CreateDocument(ctx context.Context, scope domain.Scope, d domain.Document) (domain.Document, Result, error) {
	return createRecord(ctx, s, documents, scope, d)
}

func (s *Service) UpdateDocument(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Document) error) (domain.Document, Result, error) {
	return updateRecord(ctx, s, documents, scope, id, mutator)
}

func (s *Service) DeleteDocument(ctx context.Context, scope domain.Scope, id string) (Result, error) {
	return deleteRecord(ctx, s, documents, scope, id)
}

func (s *Service) GetDocument(ctx context.Context, scope domain.Scope, id string) (domain.Document, error) {
	return getRecord(ctx, s, documents, scope, id)
}

func (s *Service) ListDocuments(ctx context.Context, scope domain.Scope) ([]domain.Document, error) {
	return listRecords(ctx, s, documents, scope)
}
