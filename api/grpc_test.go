package api

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"plant-disease-service/logger"
)

func dialBufconn(t *testing.T, ts *testServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterLeafDiagnosisServer(srv, NewLeafDiagnosisServer(ts.service, maxUpload, logger.NewNop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCAnalyzeLeaf(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)
	conn := dialBufconn(t, ts)

	resp, err := AnalyzeLeaf(context.Background(), conn, "apple_leaf.png", bytes.NewReader(pngBytes(t)), 37)
	require.NoError(t, err)

	fields := resp.AsMap()
	assert.Equal(t, "apple_leaf.png", fields["filename"])
	assert.Equal(t, "Apple__healthy", fields["predicted_class"])
	assert.Equal(t, "99.50%", fields["confidence"])
	assert.Equal(t, "LOW ✅", fields["severity"])
	assert.NotEmpty(t, fields["analysis_id"])
	assert.NotEmpty(t, fields["analysis_timestamp"])
	assertTempEmpty(t, ts.tempDir)
}

func TestGRPCOversized(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)
	conn := dialBufconn(t, ts)

	big := bytes.Repeat([]byte{7}, maxUpload+10)
	_, err := AnalyzeLeaf(context.Background(), conn, "huge.jpg", bytes.NewReader(big), 256*1024)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "File size exceeds 4MB limit. Please upload a smaller image.", st.Message())
	assert.Zero(t, ts.classifier.calls.Load())
	assertTempEmpty(t, ts.tempDir)
}

func TestGRPCMissingFilename(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)
	conn := dialBufconn(t, ts)

	_, err := AnalyzeLeaf(context.Background(), conn, "", bytes.NewReader(pngBytes(t)), 0)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "No selected file.", st.Message())
}

func TestGRPCInternalError(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{err: assert.AnError}, nil)
	conn := dialBufconn(t, ts)

	_, err := AnalyzeLeaf(context.Background(), conn, "leaf.png", bytes.NewReader(pngBytes(t)), 0)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "An internal error occurred during prediction")
}
