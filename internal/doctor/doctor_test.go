package doctor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckConfig(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/x/config.toml"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")

	check = checkConfig(config.Loaded{Path: "/x/config.toml", Exists: true, Warnings: []config.Warning{{Key: "a.b"}}})
	require.True(t, check.Pass)
	require.Equal(t, `loaded "/x/config.toml" (1 warnings)`, check.Message)
}

func TestCheckOpenAIKey(t *testing.T) {
	cfg := config.Default()
	check := checkOpenAIKey(cfg)
	require.False(t, check.Pass)

	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = "http://localhost:8080/v1"
	check = checkOpenAIKey(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "http://localhost:8080/v1")
}

func TestCheckStoreSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "doctor.db")

	check := checkStore(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "store.sqlite", check.Name)
	require.Contains(t, check.Message, "0 sessions")
}

func TestCheckStoreUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "mysql"

	check := checkStore(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "unsupported store driver")
}

func TestCheckTranscriptionHTTP(t *testing.T) {
	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Transcription.Backend = config.BackendHTTP
	cfg.Transcription.URL = srv.URL

	check := checkTranscription(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Equal(t, "transcription.http", check.Name)

	unhealthy.Store(true)
	check = checkTranscription(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "503")
}

func TestCheckTranscriptionGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	cfg := config.Default()
	cfg.Transcription.Backend = config.BackendGRPC
	cfg.Transcription.GRPCEndpoint = lis.Addr().String()
	cfg.Transcription.DialTimeoutMS = 2000

	check := checkTranscription(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	check = checkTranscription(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "NOT_SERVING")
}

func TestCheckTranscriptionGRPCUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Backend = config.BackendGRPC
	cfg.Transcription.GRPCEndpoint = "127.0.0.1:1"
	cfg.Transcription.DialTimeoutMS = 200

	start := time.Now()
	check := checkTranscription(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestCheckTranscriptionOpenAIReportsModel(t *testing.T) {
	check := checkTranscription(context.Background(), config.Default())
	require.True(t, check.Pass)
	require.Equal(t, "transcription.openai", check.Name)
	require.Equal(t, "model whisper-1", check.Message)
}
