package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docrag-go/internal/embedder"
)

// recordIDField is the payload key carrying the composite record key.
// Qdrant point ids must be UUIDs, so the composite key lives in the payload
// and the point id is derived from it deterministically.
const recordIDField = "record_id"

// namespaceField is the payload key carrying the logical namespace. Qdrant
// has no native namespaces; a payload filter on this field provides the same
// isolation within one collection.
const namespaceField = "namespace"

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantBackend implements Backend against a self-hosted Qdrant instance.
// Qdrant does not embed server-side, so the adapter carries its own
// embedder — from the Gateway's point of view embedding is still delegated
// to the backend.
type QdrantBackend struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// embed converts chunk and query text into vectors.
	embed embedder.Embedder

	// cfg holds the resolved configuration.
	cfg *QdrantConfig
}

// NewQdrantBackend creates a QdrantBackend, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantBackend(ctx context.Context, cfg *QdrantConfig, embed embedder.Embedder) (*QdrantBackend, error) {
	if embed == nil {
		return nil, fmt.Errorf("qdrant: embedder must not be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("qdrant: config must not be nil")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	b := &QdrantBackend{client: client, embed: embed, cfg: cfg}
	if err := b.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (b *QdrantBackend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     b.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", b.cfg.Collection, err)
	}
	return nil
}

// Name identifies this backend in logs and readiness checks.
func (b *QdrantBackend) Name() string { return "qdrant" }

// Upsert embeds the batch and writes one point per record. Point ids are
// deterministic UUIDs derived from namespace and composite key, so
// re-upserting a record overwrites it in place.
func (b *QdrantBackend) Upsert(ctx context.Context, namespace string, records []Record) error {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.ChunkText
	}

	vectors, err := b.embed.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("qdrant: embedding batch failed: %w", err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("qdrant: expected %d vectors, got %d", len(records), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, r := range records {
		payload := map[string]interface{}{
			recordIDField:      r.ID,
			namespaceField:     namespace,
			FieldChunkText:     r.ChunkText,
			FieldSource:        r.Source,
			FieldDocumentID:    r.DocumentID,
			FieldDocumentName:  r.DocumentName,
			FieldChunkIndex:    int64(r.ChunkIndex),
			FieldLength:        int64(r.Length),
			FieldTokenEstimate: int64(r.TokenEstimate),
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(namespace, r.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	if _, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search embeds the query and runs a cosine similarity search scoped to the
// namespace. fields is accepted for interface parity; Qdrant always returns
// the full payload.
func (b *QdrantBackend) Search(ctx context.Context, namespace, query string, topK int, fields []string) ([]Match, error) {
	vectors, err := b.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("qdrant: embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("qdrant: embedder returned empty result for query")
	}

	limit := uint64(topK)
	results, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.cfg.Collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		Filter:         b.namespaceFilter(namespace),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Score: r.Score}
		if p := r.Payload; p != nil {
			m.ID = stringValue(p, recordIDField)
			m.ChunkText = stringValue(p, FieldChunkText)
			m.Source = stringValue(p, FieldSource)
			m.DocumentID = stringValue(p, FieldDocumentID)
			m.DocumentName = stringValue(p, FieldDocumentName)
			if v, ok := p[FieldChunkIndex]; ok {
				m.ChunkIndex = int(v.GetIntegerValue())
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// DeleteByFilter removes every point whose payload field equals value within
// the namespace. Qdrant supports conditional deletion natively, so the
// Gateway's first strategy always succeeds against this backend.
func (b *QdrantBackend) DeleteByFilter(ctx context.Context, namespace, field, value string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(field, value),
			qdrant.NewMatch(namespaceField, namespace),
		},
	}
	if _, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	}); err != nil {
		return fmt.Errorf("qdrant: filter delete failed: %w", err)
	}
	return nil
}

// DeleteByIDs removes points by their composite record keys.
func (b *QdrantBackend) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(namespace, id)))
	}
	if _, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Ping probes the Qdrant instance using its native HealthCheck RPC.
func (b *QdrantBackend) Ping(ctx context.Context) error {
	if _, err := b.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// namespaceFilter scopes a query to one logical namespace.
func (b *QdrantBackend) namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(namespaceField, namespace)},
	}
}

// pointUUID derives a deterministic point UUID from a namespace and a
// composite record key.
func pointUUID(namespace, recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+recordID)).String()
}

// stringValue extracts a string payload value, tolerating missing keys.
func stringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
