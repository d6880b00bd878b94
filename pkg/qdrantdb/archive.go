package qdrantdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghostwriter/repository"

	"github.com/qdrant/go-client/qdrant"
)

const ArchiveCollectionName = "ghostwriter_texts"

// TextArchive keeps every checked text so later submissions can be compared
// against earlier ones.
type TextArchive struct {
	client     *ArchiveClient
	collection string

	mu    sync.Mutex
	ready bool
}

var _ repository.ArchiveRepo = (*TextArchive)(nil)

func NewTextArchive(client *ArchiveClient) *TextArchive {
	return &TextArchive{client: client, collection: ArchiveCollectionName}
}

func (a *TextArchive) ensureCollection(ctx context.Context, size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}

	exists, err := a.client.Client.CollectionExists(ctx, a.collection)
	if err != nil {
		return err
	}
	if !exists {
		err = a.client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: a.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(size),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("err create archive collection: %w", err)
		}
	}
	a.ready = true
	return nil
}

// Store upserts the text under repository.ArchiveID, so archiving the same
// text twice keeps one point.
func (a *TextArchive) Store(ctx context.Context, doc *repository.ArchivedText) (string, error) {
	if len(doc.Embedding) == 0 {
		return "", fmt.Errorf("archive: empty embedding")
	}
	if err := a.ensureCollection(ctx, len(doc.Embedding)); err != nil {
		return "", err
	}

	id := repository.ArchiveID(doc.Text)
	archivedAt := doc.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = time.Now().UTC()
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectorsDense(doc.Embedding),
		Payload: qdrant.NewValueMap(map[string]any{
			"report_id":   doc.ReportID,
			"text":        doc.Text,
			"source":      doc.Source,
			"archived_at": archivedAt.Format(time.RFC3339),
		}),
	}

	_, err := a.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: a.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return "", fmt.Errorf("archive upsert failed: %w", err)
	}
	return id, nil
}

func (a *TextArchive) Similar(ctx context.Context, vector []float32, minScore float32, limit int) ([]repository.ArchivedMatch, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	if err := a.ensureCollection(ctx, len(vector)); err != nil {
		return nil, err
	}

	limitUint64 := uint64(limit)
	points, err := a.client.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: a.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		ScoreThreshold: &minScore,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("archive search failed: %w", err)
	}

	matches := make([]repository.ArchivedMatch, 0, len(points))
	for _, point := range points {
		if point.Score < minScore {
			continue
		}
		m := repository.ArchivedMatch{Score: point.Score}
		if point.Id != nil {
			m.ID = point.Id.GetUuid()
		}
		if v, ok := point.Payload["report_id"]; ok {
			m.ReportID = v.GetStringValue()
		}
		if v, ok := point.Payload["text"]; ok {
			m.Text = v.GetStringValue()
		}
		matches = append(matches, m)
	}
	return matches, nil
}
