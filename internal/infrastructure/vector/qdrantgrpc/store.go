package qdrantgrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
	qdrantrest "github.com/uhaki/legal-retrieval/internal/infrastructure/vector/qdrant"
)

const serviceName = "qdrant_grpc"

// Store is the gRPC variant of the Qdrant vector store. Point ids and payload
// layout match the REST client so both can serve the same collection.
type Store struct {
	client     *qdrant.Client
	collection string
	metric     domain.DistanceMetric
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  bool
}

// New dials Qdrant at "host:port" (default port 6334).
func New(addr, collection string, metric domain.DistanceMetric, executor *resilience.Executor) (*Store, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant addr: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant grpc client: %w", err)
	}
	if metric == "" {
		metric = domain.DistanceCosine
	}
	return &Store{client: client, collection: collection, metric: metric, executor: executor}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Upsert(ctx context.Context, records []domain.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(qdrantrest.PointID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: toPayload(qdrantrest.BuildPayload(rec.ID, rec.Text, rec.Metadata)),
		})
	}

	return s.execute(ctx, "upsert", func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter domain.SearchFilter) (domain.QueryHits, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter.Act != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(qdrantrest.PayloadAct, filter.Act),
			},
		}
	}

	var points []*qdrant.ScoredPoint
	err := s.execute(ctx, "query", func(ctx context.Context) error {
		var err error
		points, err = s.client.Query(ctx, req)
		return err
	})
	if status.Code(err) == codes.NotFound {
		return domain.QueryHits{}, fmt.Errorf("collection %s does not exist: %w", s.collection, err)
	}
	if err != nil {
		return domain.QueryHits{}, err
	}

	hits := domain.QueryHits{}
	for _, p := range points {
		id, text, meta := qdrantrest.SplitPayload(p.GetId().GetUuid(), fromPayload(p.GetPayload()))
		hits.IDs = append(hits.IDs, id)
		hits.Documents = append(hits.Documents, text)
		hits.Metadatas = append(hits.Metadatas, meta)
		hits.Distances = append(hits.Distances, s.metric.DistanceFromScore(float64(p.GetScore())))
	}
	return hits, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant grpc ping", err)
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant grpc ping", err)
	}
	if !exists {
		return domain.WrapError(domain.ErrNotFound, "qdrant grpc ping", fmt.Errorf("collection %s does not exist", s.collection))
	}
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant grpc ping", err)
	}
	got := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetDistance()
	if got != qdrant.Distance_UnknownDistance && got != distance(s.metric) {
		return domain.WrapError(domain.ErrCollaboratorUnavailable, "qdrant grpc ping",
			fmt.Errorf("collection %s uses %s distance, configured %s", s.collection, got, distance(s.metric)))
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured {
		return nil
	}

	return s.execute(ctx, "ensure_collection", func(ctx context.Context) error {
		exists, err := s.client.CollectionExists(ctx, s.collection)
		if err != nil {
			return err
		}
		if !exists {
			err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: s.collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(vectorSize),
					Distance: distance(s.metric),
				}),
			})
			if err != nil && status.Code(err) != codes.AlreadyExists {
				return err
			}
			_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: s.collection,
				Wait:           qdrant.PtrOf(true),
				FieldName:      qdrantrest.PayloadAct,
				FieldType:      qdrant.PtrOf(qdrant.FieldType_FieldTypeKeyword),
			})
			if err != nil {
				return err
			}
		}
		s.ensured = true
		return nil
	})
}

func (s *Store) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if s.executor == nil {
		err = fn(ctx)
	} else {
		err = s.executor.Execute(ctx, serviceName+"_"+operation, fn, classifyGRPCError)
	}
	if err != nil {
		err = fmt.Errorf("qdrant grpc %s: %w", operation, err)
	}
	return resilience.WrapTemporary(serviceName+" "+operation, err, classifyGRPCError)
}

func classifyGRPCError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.FailedPrecondition:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func distance(metric domain.DistanceMetric) qdrant.Distance {
	switch metric {
	case domain.DistanceDot:
		return qdrant.Distance_Dot
	case domain.DistanceEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func toPayload(in map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = qdrant.NewValueString(val)
		case bool:
			out[k] = qdrant.NewValueBool(val)
		case int:
			out[k] = qdrant.NewValueInt(int64(val))
		case int64:
			out[k] = qdrant.NewValueInt(val)
		case float64:
			out[k] = qdrant.NewValueDouble(val)
		case float32:
			out[k] = qdrant.NewValueDouble(float64(val))
		case nil:
			continue
		default:
			out[k] = qdrant.NewValueString(fmt.Sprintf("%v", val))
		}
	}
	return out
}

func fromPayload(in map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}
