package llmapi

import (
	"context"
	"fmt"
	"log/slog"

	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// generateMethod is the fully-qualified gRPC method the sidecar exposes.
// The teacher's llmv1 package carries a protoc-generated request/response
// pair for this method; this module has no protoc step available, so
// GRPCProvider invokes the same method name against structpb.Struct
// request/response envelopes instead of generated message types — see
// the grounding ledger entry for the tradeoff this avoids (fabricating
// hand-written .pb.go files with no compiler to check them against).
const generateMethod = "/repairagent.llm.v1.LLMService/Generate"

// GRPCProvider is the default SDK-based Provider (spec.md §6), grounded
// on the teacher's GRPCLLMClient: a single long-lived ClientConn to a
// model-serving sidecar, one RPC per Generate call, no retry of its own
// (retry.go's withRetry wraps every Gateway call site instead).
type GRPCProvider struct {
	conn  *grpc.ClientConn
	model string
	log   *slog.Logger
}

// NewGRPCProvider dials addr with plaintext transport credentials,
// matching the teacher's NewGRPCLLMClient (the sidecar runs inside the
// same trust boundary, so TLS is out of scope here as it is there).
func NewGRPCProvider(addr, model string) (*GRPCProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, &repairerrors.TransportError{Target: "llm-grpc", Err: err}
	}
	return &GRPCProvider{conn: conn, model: model, log: slog.With("component", "llmapi.GRPCProvider")}, nil
}

// Generate issues one unary call to the sidecar and maps its response
// back into a Response.
func (p *GRPCProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	reqStruct, err := structpb.NewStruct(map[string]any{
		"model":           model,
		"messages":        messagesToAny(req.Messages),
		"temperature":     req.Temperature,
		"response_format": string(req.ResponseFormat),
		"max_tokens":      req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encoding llm request: %w", err)
	}

	respStruct := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, generateMethod, reqStruct, respStruct); err != nil {
		return Response{}, classifyGRPCError(err)
	}

	return responseFromStruct(respStruct), nil
}

// Close releases the underlying ClientConn.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

func messagesToAny(msgs []ConversationMessage) []any {
	out := make([]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	return out
}

func responseFromStruct(s *structpb.Struct) Response {
	fields := s.GetFields()
	resp := Response{Text: fields["text"].GetStringValue()}

	if usage := fields["usage"].GetStructValue(); usage != nil {
		uf := usage.GetFields()
		resp.Usage = Usage{
			InputTokens:  int(uf["input_tokens"].GetNumberValue()),
			OutputTokens: int(uf["output_tokens"].GetNumberValue()),
			TotalTokens:  int(uf["total_tokens"].GetNumberValue()),
		}
	}

	if calls := fields["tool_calls"].GetListValue(); calls != nil {
		for _, v := range calls.GetValues() {
			cf := v.GetStructValue().GetFields()
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        cf["id"].GetStringValue(),
				Name:      cf["name"].GetStringValue(),
				Arguments: cf["arguments"].GetStringValue(),
			})
		}
	}
	return resp
}

// classifyGRPCError maps a gRPC status code onto the repair agent's own
// error taxonomy so repairerrors.Classify drives retry decisions the
// same way regardless of which Provider made the call.
func classifyGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &repairerrors.TransportError{Target: "llm-grpc", Err: err}
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return &repairerrors.TimeoutError{Operation: "llm.generate", Err: err}
	case codes.ResourceExhausted:
		return &repairerrors.ClientError{Target: "llm-grpc", Status: 429, Err: err}
	case codes.InvalidArgument, codes.FailedPrecondition, codes.Unimplemented:
		return &repairerrors.ClientError{Target: "llm-grpc", Status: 400, Err: err}
	case codes.Unavailable, codes.Aborted, codes.Internal:
		return &repairerrors.TransportError{Target: "llm-grpc", Err: err}
	default:
		return &repairerrors.TransportError{Target: "llm-grpc", Err: err}
	}
}
