package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RetrivaAI/retriva/engine/domain"
)

// --- mocks ---

type mockPoints struct {
	upsertResp  *pb.PointsOperationResponse
	upsertErr   error
	upsertCalls int
	searchResp  *pb.SearchResponse
	searchErr   error
	searchCalls int
	countResp   *pb.CountResponse
	countErr    error
	lastSearch  *pb.SearchPoints
}

func (m *mockPoints) Upsert(_ context.Context, _ *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertCalls++
	return m.upsertResp, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchCalls++
	m.lastSearch = in
	return m.searchResp, m.searchErr
}

func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp    *pb.ListCollectionsResponse
	listErr     error
	createResp  *pb.CollectionOperationResponse
	createErr   error
	createCalls int
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Create(_ context.Context, _ *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createCalls++
	return m.createResp, m.createErr
}

// --- tests ---

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "kb"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "kb")
	if err := vs.EnsureCollection(context.Background(), 1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createCalls != 0 {
		t.Fatalf("create should not be called for an existing collection, got %d calls", cols.createCalls)
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "kb")
	if err := vs.EnsureCollection(context.Background(), 1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createCalls != 1 {
		t.Fatalf("expected exactly one create call, got %d", cols.createCalls)
	}
}

func TestEnsureCollection_TransportError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "kb")
	err := vs.EnsureCollection(context.Background(), 1024)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestUpsert_EmptyID(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	err := vs.Upsert(context.Background(), VectorRecord{Embedding: []float32{1}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if pts.upsertCalls != 0 {
		t.Fatal("no call should reach the store on validation failure")
	}
}

func TestUpsert_EmptyVector(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	err := vs.Upsert(context.Background(), VectorRecord{ID: "id-1"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if pts.upsertCalls != 0 {
		t.Fatal("no call should reach the store on validation failure")
	}
}

func TestUpsert_Success(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	rec := VectorRecord{
		ID:        "7b1a9c0e-0000-0000-0000-000000000001",
		Embedding: []float32{0.1, 0.2, 0.3},
		Payload:   domain.EncodeDocument(domain.DocumentPayload{Document: "a cat sat"}),
	}
	if err := vs.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertCalls != 1 {
		t.Fatalf("expected one upsert call, got %d", pts.upsertCalls)
	}
}

func TestSearch_ValidatesBeforeRPC(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "kb")

	if _, err := vs.Search(context.Background(), []float32{1}, 0, 0.5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("limit 0: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := vs.Search(context.Background(), []float32{1}, 5, 1.5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("score 1.5: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := vs.Search(context.Background(), []float32{1}, 5, -0.1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("score -0.1: expected ErrInvalidArgument, got %v", err)
	}
	if pts.searchCalls != 0 {
		t.Fatalf("no RPC may be issued for invalid arguments, got %d calls", pts.searchCalls)
	}
}

func TestSearch_ThresholdAndLimitForwarded(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	if _, err := vs.Search(context.Background(), []float32{0.1, 0.2}, 3, 0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := pts.lastSearch
	if req.GetLimit() != 3 {
		t.Errorf("limit: got %d want 3", req.GetLimit())
	}
	if req.ScoreThreshold == nil || *req.ScoreThreshold != 0.7 {
		t.Errorf("score threshold: got %v want 0.7", req.ScoreThreshold)
	}
	if !req.GetWithPayload().GetEnable() {
		t.Error("payload selector must be enabled")
	}
}

func TestSearch_MapsResults(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{
			{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "id-a"}},
				Score: 0.9,
				Payload: map[string]*pb.Value{
					domain.KeyDocument: {Kind: &pb.Value_StringValue{StringValue: "a cat sat"}},
				},
			},
			{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "id-b"}},
				Score: 0.6,
			},
		},
	}}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	got, err := vs.Search(context.Background(), []float32{0.1}, 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].ID != "id-a" || got[0].Score != 0.9 {
		t.Errorf("first result: %+v", got[0])
	}
	p, err := domain.DecodeDocument(got[0].Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.Document != "a cat sat" {
		t.Errorf("payload document: got %q", p.Document)
	}
}

func TestCount(t *testing.T) {
	n := uint64(12)
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: n}}}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	got, err := vs.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != n {
		t.Errorf("count: got %d want %d", got, n)
	}
}

func TestCancellation_Distinguished(t *testing.T) {
	// gRPC surfaces cancellation as a status error that does not unwrap to
	// context.Canceled; the store must report the context's own error.
	rpcErr := status.Error(codes.Canceled, "context canceled")
	pts := &mockPoints{searchErr: rpcErr, upsertErr: rpcErr, countErr: rpcErr}
	cols := &mockCollections{listErr: rpcErr}
	vs := NewWithClients(pts, cols, "kb")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := VectorRecord{ID: "id-1", Embedding: []float32{1}}
	calls := []struct {
		name string
		run  func() error
	}{
		{"search", func() error { _, err := vs.Search(ctx, []float32{1}, 1, 0.5); return err }},
		{"upsert", func() error { return vs.Upsert(ctx, rec) }},
		{"count", func() error { _, err := vs.Count(ctx); return err }},
		{"ensure", func() error { return vs.EnsureCollection(ctx, 1024) }},
	}
	for _, c := range calls {
		err := c.run()
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", c.name, err)
		}
		if errors.Is(err, domain.ErrStoreUnavailable) {
			t.Errorf("%s: cancellation must not be reported as a store failure", c.name)
		}
	}
}

func TestSearch_TransportError(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("conn refused")}
	vs := NewWithClients(pts, &mockCollections{}, "kb")
	_, err := vs.Search(context.Background(), []float32{1}, 1, 0)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
