// internal/store/esaudit.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"application-engine/internal/common/database"
	"application-engine/internal/models"
)

// AuditSink receives committed transition records. Indexing is
// best-effort: the engine logs failures but never rolls a commit back
// over them.
type AuditSink interface {
	Index(ctx context.Context, app *models.Application, record models.AuditRecord) error
}

// ESAuditSink indexes audit records into Elasticsearch for search and
// replay tooling.
type ESAuditSink struct {
	es    *database.ElasticsearchClient
	index string
}

func NewESAuditSink(es *database.ElasticsearchClient, index string) *ESAuditSink {
	return &ESAuditSink{es: es, index: index}
}

type auditDocument struct {
	ApplicationID string `json:"applicationId"`
	TypeID        string `json:"typeId"`
	models.AuditRecord
}

func (s *ESAuditSink) Index(ctx context.Context, app *models.Application, record models.AuditRecord) error {
	doc := auditDocument{
		ApplicationID: app.ID,
		TypeID:        app.TypeID,
		AuditRecord:   record,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	res, err := s.es.Client.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Client.Index.WithContext(ctx),
		s.es.Client.Index.WithDocumentID(record.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index audit record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("audit index error: %s", res.Status())
	}
	return nil
}
