package qdrantgrpc

import (
	"context"
	"fmt"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPayloadRoundTripKeepsPrimitiveTypes(t *testing.T) {
	in := map[string]any{
		"act":           "Employment Act",
		"chunk_index":   3,
		"prev_chunk_id": int64(11),
		"score":         0.5,
		"flag":          true,
		"nested":        []string{"a"},
	}
	out := fromPayload(toPayload(in))
	if out["act"] != "Employment Act" || out["chunk_index"] != int64(3) || out["flag"] != true {
		t.Fatalf("unexpected payload %v", out)
	}
	if out["nested"] != "[a]" {
		t.Fatalf("expected non-primitive coerced to string, got %v", out["nested"])
	}
}

func TestClassifyGRPCError(t *testing.T) {
	unavailable := fmt.Errorf("query: %w", status.Error(codes.Unavailable, "connection refused"))
	if c := classifyGRPCError(unavailable); !c.Retryable {
		t.Fatalf("expected unavailable to be retryable")
	}
	invalid := status.Error(codes.InvalidArgument, "wrong vector size")
	if c := classifyGRPCError(invalid); c.Retryable || c.RecordFailure {
		t.Fatalf("expected invalid argument to fail fast, got %+v", c)
	}
	if c := classifyGRPCError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("expected cancellation to be ignored, got %+v", c)
	}
}

func TestDistanceMapping(t *testing.T) {
	if distance("") != qdrant.Distance_Cosine || distance("dot") != qdrant.Distance_Dot {
		t.Fatalf("unexpected distance mapping")
	}
}
