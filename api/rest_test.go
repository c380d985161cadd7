package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"plant-disease-service/data"
	"plant-disease-service/disease"
	"plant-disease-service/imaging"
	"plant-disease-service/logger"
	"plant-disease-service/service"
)

const maxUpload = 4 * 1024 * 1024

type stubClassifier struct {
	probs []float32
	err   error
	calls atomic.Int32
}

func (c *stubClassifier) Predict(input []float32) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.probs, nil
}

type stubHistory struct {
	rows []data.History
	got  data.Pagination
}

func (h *stubHistory) FindAll(ctx context.Context, p data.Pagination) ([]data.History, error) {
	h.got = p
	return h.rows, nil
}

func (h *stubHistory) FindByID(ctx context.Context, id uuid.UUID) (*data.History, error) {
	for i := range h.rows {
		if h.rows[i].ID == id {
			return &h.rows[i], nil
		}
	}
	return nil, data.ErrHistoryNotFound
}

func appleHealthy() []float32 {
	probs := make([]float32, 38)
	for i := range probs {
		probs[i] = 0.005 / 37
	}
	probs[3] = 0.995
	return probs
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testServer struct {
	app        *fiber.App
	classifier *stubClassifier
	tempDir    string
	service    *service.InferenceService
}

func newTestServer(t *testing.T, clf *stubClassifier, history HistoryLister) *testServer {
	t.Helper()
	catalog, err := disease.Default()
	require.NoError(t, err)

	tempDir := filepath.Join(t.TempDir(), "temp")
	svc := service.NewInferenceService(clf, imaging.NewPreprocessor(imaging.NHWC), catalog, logger.NewNop(), service.Options{
		TempDir:        tempDir,
		MaxUploadBytes: maxUpload,
		ImageSize:      224,
		Timeout:        5 * time.Second,
	})

	app := NewRESTServer(RESTConfig{BodyLimit: 4*maxUpload + 1<<20, MaxUploadBytes: maxUpload}, svc, history, logger.NewNop())
	return &testServer{app: app, classifier: clf, tempDir: tempDir, service: svc}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &body, w.FormDataContentType()
}

func doPredict(t *testing.T, app *fiber.App, body io.Reader, contentType string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func assertTempEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPredictHealthyApple(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	body, ct := multipartBody(t, "file", "apple_leaf.png", pngBytes(t))
	code, out := doPredict(t, ts.app, body, ct)

	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, map[string]string{
		"filename":        "apple_leaf.png",
		"predicted_class": "Apple__healthy",
		"confidence":      "99.50%",
		"severity":        "LOW ✅",
		"diagnosis":       "The plant shows no signs of disease and appears perfectly healthy.",
		"treatment":       "Continue routine care and monitoring.",
	}, out)
	assertTempEmpty(t, ts.tempDir)
}

func TestPredictMissingFilePart(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	body, ct := multipartBody(t, "image", "leaf.png", pngBytes(t))
	code, out := doPredict(t, ts.app, body, ct)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No file part in the request.", out["error"])
}

func TestPredictNotMultipart(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	code, out := doPredict(t, ts.app, bytes.NewReader([]byte(`{}`)), "application/json")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No file part in the request.", out["error"])
}

func TestPredictEmptyFilename(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	body, ct := multipartBody(t, "file", "", nil)
	code, out := doPredict(t, ts.app, body, ct)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No selected file.", out["error"])
	assert.Zero(t, ts.classifier.calls.Load())
	assertTempEmpty(t, ts.tempDir)
}

func TestPredictOversized(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	body, ct := multipartBody(t, "file", "huge.jpg", bytes.Repeat([]byte{1}, maxUpload+1))
	code, out := doPredict(t, ts.app, body, ct)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "File size exceeds 4MB limit. Please upload a smaller image.", out["error"])
	assert.Zero(t, ts.classifier.calls.Load())
	assertTempEmpty(t, ts.tempDir)
}

func TestPredictBodyOverServerLimit(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)
	app := NewRESTServer(RESTConfig{BodyLimit: 1024, MaxUploadBytes: maxUpload}, ts.service, nil, logger.NewNop())

	// app.Test reports a rejected body as an error, so go through a listener.
	ln := fasthttputil.NewInmemoryListener()
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	conn, err := ln.Dial()
	require.NoError(t, err)
	defer conn.Close()

	body, ct := multipartBody(t, "file", "huge.jpg", bytes.Repeat([]byte{1}, 4096))
	req, err := http.NewRequest(http.MethodPost, "http://leafdiag/predict", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", ct)
	go req.Write(conn)

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "File size exceeds 4MB limit. Please upload a smaller image.", out["error"])
	assert.Zero(t, ts.classifier.calls.Load())
}

func TestPredictUndecodable(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{probs: appleHealthy()}, nil)

	body, ct := multipartBody(t, "file", "leaf.jpg", []byte("garbage"))
	code, out := doPredict(t, ts.app, body, ct)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, service.MsgUndecodable, out["error"])
	assertTempEmpty(t, ts.tempDir)
}

func TestPredictInternalError(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{err: errors.New("model not loaded")}, nil)

	body, ct := multipartBody(t, "file", "leaf.png", pngBytes(t))
	code, out := doPredict(t, ts.app, body, ct)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "An internal error occurred during prediction: model not loaded", out["error"])
	assertTempEmpty(t, ts.tempDir)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, nil)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistoryDisabled(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, nil)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/history", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryList(t *testing.T) {
	history := &stubHistory{rows: []data.History{{Filename: "a.png", PredictedClass: "Apple__healthy", Status: data.StatusSuccess}}}
	ts := newTestServer(t, &stubClassifier{}, history)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/history?page=2&page_size=500", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
		Results  []data.History `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Page)
	assert.Equal(t, 100, out.PageSize)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a.png", out.Results[0].Filename)
	assert.Equal(t, data.Pagination{Page: 2, PageSize: 100}, history.got)
}

func TestHistoryEntry(t *testing.T) {
	id := uuid.New()
	history := &stubHistory{rows: []data.History{{ID: id, Filename: "a.png", PredictedClass: "Apple__healthy", Status: data.StatusSuccess}}}
	ts := newTestServer(t, &stubClassifier{}, history)

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/history/"+id.String(), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out data.History
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, id, out.ID)
	assert.Equal(t, "Apple__healthy", out.PredictedClass)
}

func TestHistoryEntryNotFound(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, &stubHistory{})

	tests := []struct {
		name string
		id   string
	}{
		{name: "unknown id", id: uuid.New().String()},
		{name: "malformed id", id: "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/history/"+tt.id, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			var out map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, "Prediction not found.", out["error"])
		})
	}
}
