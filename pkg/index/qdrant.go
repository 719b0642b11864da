package index

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/google/uuid"
	"github.com/jllopis/chimera/pkg/resilience"
	"github.com/jllopis/chimera/pkg/signature"
	"github.com/jllopis/chimera/pkg/telemetry"
)

// Qdrant implements Index against a qdrant instance over grpc.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	retry       resilience.RetryConfig
	logger      *slog.Logger
}

// QdrantOption configures a Qdrant index.
type QdrantOption func(*Qdrant)

// WithRetry overrides the retry policy for network calls.
func WithRetry(rc resilience.RetryConfig) QdrantOption {
	return func(q *Qdrant) { q.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) QdrantOption {
	return func(q *Qdrant) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQdrant connects to a qdrant instance at addr and stores points in the
// named collection.
func NewQdrant(addr, collection string, opts ...QdrantOption) (*Qdrant, error) {
	if addr == "" {
		return nil, fmt.Errorf("qdrant address is empty")
	}
	if collection == "" {
		collection = "chimera_capabilities"
	}

	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	q := &Qdrant{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		retry:       resilience.DefaultRetryConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// EnsureCollection creates the capability collection when it is missing.
// Vector size is fixed to the canonical domain count, cosine distance.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	return q.retry.Do(ctx, func() error {
		existing, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
		if err != nil {
			return fmt.Errorf("list collections: %w", err)
		}
		for _, c := range existing.GetCollections() {
			if c.GetName() == q.collection {
				return nil
			}
		}

		_, err = q.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     VectorSize,
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", q.collection, err)
		}
		q.logger.Info("created similarity collection", "collection", q.collection, "size", VectorSize)
		return nil
	})
}

// UpsertSignatures indexes one point per signature. Point IDs are fresh
// UUIDs; the payload carries enough metadata to make a hit readable
// without fetching the run.
func (q *Qdrant) UpsertSignatures(ctx context.Context, runID string, sigs []signature.ArtifactSignature) error {
	if len(sigs) == 0 {
		return nil
	}
	trace.SpanFromContext(ctx).SetAttributes(telemetry.IndexAttributes(q.collection, len(sigs))...)

	points := make([]*pb.PointStruct, len(sigs))
	for i, sig := range sigs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: Vector(sig)},
				},
			},
			Payload: toPayload(map[string]interface{}{
				"artifact":     sig.ArtifactName,
				"run_id":       runID,
				"architecture": sig.Architecture,
				"parameters":   int64(sig.ParameterCount),
				"size_bytes":   sig.SizeBytes,
			}),
		}
	}

	return q.retry.Do(ctx, func() error {
		_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("upsert %d points: %w", len(points), err)
		}
		return nil
	})
}

// Similar returns the limit nearest artifacts to the given vector.
func (q *Qdrant) Similar(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}

	var matches []Match
	err := q.retry.Do(ctx, func() error {
		resp, err := q.points.Search(ctx, &pb.SearchPoints{
			CollectionName: q.collection,
			Vector:         vector,
			Limit:          uint64(limit),
			WithPayload: &pb.WithPayloadSelector{
				SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
			},
		})
		if err != nil {
			return fmt.Errorf("search points: %w", err)
		}

		matches = make([]Match, len(resp.GetResult()))
		for i, scored := range resp.GetResult() {
			matches[i] = matchFromScored(scored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Close tears down the grpc connection.
func (q *Qdrant) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func matchFromScored(scored *pb.ScoredPoint) Match {
	m := Match{Score: scored.GetScore()}
	if id := scored.GetId(); id != nil {
		if u := id.GetUuid(); u != "" {
			m.ID = u
		} else {
			m.ID = fmt.Sprintf("%d", id.GetNum())
		}
	}
	payload := fromPayload(scored.GetPayload())
	if v, ok := payload["artifact"].(string); ok {
		m.Artifact = v
	}
	if v, ok := payload["run_id"].(string); ok {
		m.RunID = v
	}
	if v, ok := payload["architecture"].(string); ok {
		m.Architecture = v
	}
	if v, ok := payload["parameters"].(int64); ok {
		m.Parameters = v
	}
	return m
}

func toPayload(fields map[string]interface{}) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
		case uint64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
		}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) map[string]interface{} {
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			fields[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			fields[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			fields[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			fields[k] = kind.BoolValue
		}
	}
	return fields
}
