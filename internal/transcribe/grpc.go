package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// TranscribeMethod is the unary RPC served by the speech backend. Request and
// response messages are google.protobuf.Struct.
const TranscribeMethod = "/faloodai.transcription.v1.Transcription/Transcribe"

// GRPCConfig controls the speech backend connection.
type GRPCConfig struct {
	Endpoint    string
	DialTimeout time.Duration
}

// GRPC transcribes chunks through a unary gRPC call.
type GRPC struct {
	conn *grpc.ClientConn
}

// DialGRPC connects to the backend and waits until the channel is ready.
func DialGRPC(ctx context.Context, cfg GRPCConfig) (*GRPC, error) {
	conn, err := dialReady(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GRPC{conn: conn}, nil
}

func (g *GRPC) Transcribe(ctx context.Context, req Request) (Result, error) {
	in, err := structpb.NewStruct(map[string]any{
		"session_id": req.SessionID,
		"seq":        req.Seq,
		"audio_ref":  string(req.Ref),
		"audio":      req.Audio,
	})
	if err != nil {
		return Result{}, fmt.Errorf("build transcribe request: %w", err)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, TranscribeMethod, in, out); err != nil {
		return Result{}, fmt.Errorf("transcribe rpc: %w", err)
	}
	return resultFromStruct(out)
}

// Close releases the connection.
func (g *GRPC) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

func resultFromStruct(s *structpb.Struct) (Result, error) {
	fields := s.GetFields()
	res := Result{Transcript: strings.TrimSpace(fields["text"].GetStringValue())}

	raw, ok := fields["segments"]
	if !ok {
		return res, nil
	}
	list := raw.GetListValue()
	if list == nil {
		return Result{}, fmt.Errorf("%w: segments is not a list", ErrMalformedResponse)
	}
	if len(list.GetValues()) == 0 {
		return res, nil
	}

	res.Segments = make([]Segment, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		seg := v.GetStructValue()
		if seg == nil {
			return Result{}, fmt.Errorf("%w: segment %d is not an object", ErrMalformedResponse, i)
		}
		f := seg.GetFields()
		res.Segments = append(res.Segments, Segment{
			SpeakerLabel: f["speaker"].GetStringValue(),
			Text:         f["text"].GetStringValue(),
			IsQuestion:   f["is_question"].GetBoolValue(),
		})
	}
	return res, nil
}

// CheckHealth asks the standard gRPC health service whether the backend is serving.
func CheckHealth(ctx context.Context, cfg GRPCConfig) error {
	conn, err := dialReady(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status %s", resp.GetStatus())
	}
	return nil
}

func dialReady(ctx context.Context, cfg GRPCConfig) (*grpc.ClientConn, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("transcription grpc endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial transcription grpc %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for transcription grpc readiness: %w", err)
	}
	return conn, nil
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
