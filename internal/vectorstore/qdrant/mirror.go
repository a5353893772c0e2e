// Package qdrant keeps a durable copy of session chunks in a Qdrant
// collection. Reads are served from the in-memory index; the mirror is only
// written to.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spigell/resume-tailor/internal/vectorindex"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	fieldSession   = "session_id"
	fieldSource    = "source_tag"
	fieldText      = "text"
	fieldCreatedAt = "created_at"
)

// Config selects the Qdrant instance and collection.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Collection string `mapstructure:"collection"`
}

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Mirror writes session chunks to one Qdrant collection.
type Mirror struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	logger      *zap.Logger
}

// New connects to Qdrant over gRPC. The connection is established lazily.
func New(cfg Config, logger *zap.Logger) (*Mirror, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", cfg.Address, err)
	}

	m := newMirror(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg.Collection, logger)
	m.conn = conn
	return m, nil
}

func newMirror(points pointsAPI, collections collectionsAPI, collection string, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      logger.With(zap.String("qdrant_collection", collection)),
	}
}

func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// EnsureCollection creates the collection with cosine distance when missing.
func (m *Mirror) EnsureCollection(ctx context.Context, dims int) error {
	list, err := m.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == m.collection {
			return nil
		}
	}

	_, err = m.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", m.collection, err)
	}

	m.logger.Info("qdrant collection created", zap.Int("dimensions", dims))
	return nil
}

// Replace mirrors vectorindex.Index.Replace: for every tag in batch the
// session's points with that tag are deleted before the new ones are written.
func (m *Mirror) Replace(ctx context.Context, sessionID string, batch map[vectorindex.SourceTag][]vectorindex.Chunk) error {
	tags := make([]vectorindex.SourceTag, 0, len(batch))
	for tag := range batch {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	var all []vectorindex.Chunk
	for _, tag := range tags {
		if err := m.delete(ctx, sessionFilter(sessionID, tag)); err != nil {
			return fmt.Errorf("delete %s points of session %s: %w", tag, sessionID, err)
		}
		all = append(all, batch[tag]...)
	}

	return m.Append(ctx, all)
}

// Append writes chunks without deleting anything.
func (m *Mirror) Append(ctx context.Context, chunks []vectorindex.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	wait := true
	_, err := m.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: m.collection,
		Wait:           &wait,
		Points:         toPoints(chunks),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(chunks), err)
	}

	m.logger.Debug("chunks mirrored", zap.Int("points", len(chunks)))
	return nil
}

// DeleteSession removes every point of sessionID.
func (m *Mirror) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.delete(ctx, sessionFilter(sessionID, "")); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (m *Mirror) delete(ctx context.Context, filter *pb.Filter) error {
	wait := true
	_, err := m.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: m.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	return err
}

func toPoints(chunks []vectorindex.Chunk) []*pb.PointStruct {
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: c.Embedding},
				},
			},
			Payload: payload(c),
		}
	}
	return points
}

func payload(c vectorindex.Chunk) map[string]*pb.Value {
	return map[string]*pb.Value{
		fieldSession:   stringValue(c.SessionID),
		fieldSource:    stringValue(string(c.Source)),
		fieldText:      stringValue(c.Text),
		fieldCreatedAt: stringValue(c.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// sessionFilter matches the points of sessionID, narrowed to tag when set.
func sessionFilter(sessionID string, tag vectorindex.SourceTag) *pb.Filter {
	must := []*pb.Condition{fieldMatch(fieldSession, sessionID)}
	if tag != "" {
		must = append(must, fieldMatch(fieldSource, string(tag)))
	}
	return &pb.Filter{Must: must}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
