package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Reserved payload keys written on every point.
const (
	payloadNamespace = "namespace"
	payloadItemID    = "item_id"
	payloadDomain    = "domain"
)

// pointNamespace seeds the deterministic point ids.
var pointNamespace = uuid.MustParse("6f1c2a9e-3b7d-5c41-9a0e-8d2f4b6c1e37")

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host   string
	Port   int
	APIKey string // Qdrant Cloud API key, enables TLS
	UseTLS bool   // TLS without an API key
}

// apiKeyInterceptor adds the api-key header to every unary call.
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository owns the gRPC connection shared by all domain indexes.
type QdrantRepository struct {
	conn          *grpc.ClientConn
	pointsClient  pb.PointsClient
	collectClient pb.CollectionsClient
}

// NewQdrantRepository connects to local Qdrant (insecure) or Qdrant Cloud
// (TLS + API key).
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:          conn,
		pointsClient:  pb.NewPointsClient(conn),
		collectClient: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// Ping lists collections to check that Qdrant answers.
func (r *QdrantRepository) Ping(ctx context.Context) error {
	if _, err := r.collectClient.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("qdrant unavailable: %w", err)
	}
	return nil
}

// Index returns the VectorIndex of one domain collection.
func (r *QdrantRepository) Index(collection string, dimension int, domainName string) *QdrantIndex {
	return &QdrantIndex{
		points:      r.pointsClient,
		collections: r.collectClient,
		collection:  collection,
		dimension:   dimension,
		domain:      domainName,
	}
}

// QdrantIndex implements VectorIndex on one collection. Namespaces are a
// keyword payload field filtered on every query.
type QdrantIndex struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
	domain      string
}

func (q *QdrantIndex) Dimension() int { return q.dimension }

// Collection returns the collection name.
func (q *QdrantIndex) Collection() string { return q.collection }

// EnsureCollection creates the collection and the namespace payload index.
// An existing collection with another vector size is an error.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: q.collection,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(q.dimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", q.collection, size, q.dimension)
		}
		return q.ensureNamespaceIndex(ctx)
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:           optionalUint64(16),
			EfConstruct: optionalUint64(128),
			PayloadM:    optionalUint64(16),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}
	return q.ensureNamespaceIndex(ctx)
}

func (q *QdrantIndex) ensureNamespaceIndex(ctx context.Context) error {
	_, err := q.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      payloadNamespace,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		Wait:           optionalBool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s.%s: %w", q.collection, payloadNamespace, err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, entry VectorEntry) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := checkDimension(entry.Vector, q.dimension); err != nil {
		return err
	}

	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           optionalBool(true),
		Points: []*pb.PointStruct{
			{
				Id: pointID(namespace, entry.ID),
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: entry.Vector},
					},
				},
				Payload: buildPayload(namespace, entry.ID, q.domain, entry.Metadata),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error) {
	if err := checkNamespace(namespace); err != nil {
		return nil, err
	}
	if err := checkDimension(vector, q.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         namespaceFilter(namespace),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]VectorMatch, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		payload := scored.GetPayload()
		// never trust a hit from another namespace
		if payload[payloadNamespace].GetStringValue() != namespace {
			continue
		}
		matches = append(matches, VectorMatch{
			ID:       payload[payloadItemID].GetStringValue(),
			Score:    scored.GetScore(),
			Metadata: parsePayload(payload),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, namespace, id string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           optionalBool(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{pointID(namespace, id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// pointID derives a stable UUID from (namespace, id) so the same item in
// two namespaces never collides and re-upserts overwrite.
func pointID(namespace, id string) *pb.PointId {
	uid := uuid.NewSHA1(pointNamespace, []byte(namespace+"\x00"+id))
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()},
	}
}

func namespaceFilter(namespace string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key: payloadNamespace,
						Match: &pb.Match{
							MatchValue: &pb.Match_Keyword{Keyword: namespace},
						},
					},
				},
			},
		},
	}
}

func buildPayload(namespace, id, domainName string, md map[string]interface{}) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(md)+3)
	for k, v := range md {
		payload[k] = toValue(v)
	}
	payload[payloadNamespace] = stringValue(namespace)
	payload[payloadItemID] = stringValue(id)
	payload[payloadDomain] = stringValue(domainName)
	return payload
}

func parsePayload(payload map[string]*pb.Value) map[string]interface{} {
	md := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch k {
		case payloadNamespace, payloadItemID, payloadDomain:
			continue
		}
		md[k] = fromValue(v)
	}
	return md
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func toValue(v interface{}) *pb.Value {
	switch x := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}
	case string:
		return stringValue(x)
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: x}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(x)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: x}}
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(x)}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: x}}
	case []string:
		values := make([]*pb.Value, len(x))
		for i, s := range x {
			values[i] = stringValue(s)
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
	default:
		return stringValue(fmt.Sprint(x))
	}
}

func fromValue(v *pb.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_ListValue:
		out := make([]interface{}, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			out = append(out, fromValue(item))
		}
		return out
	default:
		return nil
	}
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func optionalBool(v bool) *bool {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if size := vectors.GetParams().GetSize(); size > 0 {
		return size, true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if size := params.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}
