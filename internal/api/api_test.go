package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailmerge/internal/api"
	"github.com/dmitrymomot/mailmerge/internal/metrics"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/draft"
)

func upload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/validate-csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postJSON(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestValidateCSV(t *testing.T) {
	t.Parallel()

	h := api.New().Handler()

	rec, body := serve(h, upload(t, "list.csv", "email,first_name\na@x.com,Ann\nbad,Bob\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["valid_rows_count"])
	assert.EqualValues(t, 1, body["invalid_rows_count"])

	valid := body["valid_rows"].([]any)[0].(map[string]any)
	assert.Equal(t, "a@x.com", valid["email"])
	assert.Equal(t, "Ann", valid["first_name"])
	assert.Nil(t, valid["last_name"])
	assert.Equal(t, false, valid["opt_out"])

	invalid := body["invalid_rows"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, invalid["row_index"])
	assert.Equal(t, "bad", invalid["data"].(map[string]any)["email"])

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestValidateCSV_Rejections(t *testing.T) {
	t.Parallel()

	h := api.New().Handler()

	rec, body := serve(h, upload(t, "list.txt", "email\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only CSV files are allowed.", body["detail"])

	rec, body = serve(h, upload(t, "list.csv", "name\nAnn\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["detail"], "email")

	rec, _ = serve(h, httptest.NewRequest(http.MethodPost, "/validate-csv", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateEmail(t *testing.T) {
	t.Parallel()

	gen := draft.GeneratorFunc(func(_ context.Context, prompt string, history []draft.Turn) (draft.Draft, error) {
		if prompt == "fail" {
			return draft.Draft{}, errors.New("model unavailable")
		}
		return draft.Draft{Subject: "S:" + prompt, Body: "turns=" + string(rune('0'+len(history)))}, nil
	})
	h := api.New(api.WithGenerator(gen)).Handler()

	rec, body := serve(h, postJSON(t, "/generate-email", map[string]any{
		"user_message": "intro",
		"history":      []map[string]string{{"role": "user", "content": "hi"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S:intro", body["subject"])
	assert.Equal(t, "turns=1", body["body"])

	rec, body = serve(h, postJSON(t, "/generate-email", map[string]any{"user_message": "fail"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["detail"], "model unavailable")

	rec, _ = serve(api.New().Handler(), postJSON(t, "/generate-email", map[string]any{"user_message": "x"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPersonalizeEmails(t *testing.T) {
	t.Parallel()

	h := api.New().Handler()

	rec, body := serve(h, postJSON(t, "/personalize-emails", map[string]any{
		"subject": "Hello",
		"body":    "Hi {{first_name}}",
		"recipients": []map[string]any{
			{"email": "a@x.com", "first_name": "A"},
			{"email": "b@x.com", "first_name": "B"},
		},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello", body["subject"])
	assert.Equal(t, []any{
		map[string]any{"email": "a@x.com", "rendered_body": "Hi A"},
		map[string]any{"email": "b@x.com", "rendered_body": "Hi B"},
	}, body["emails"])

	rec, body = serve(h, postJSON(t, "/personalize-emails", map[string]any{
		"subject":    "Hello",
		"body":       "Hi {{first_name}}",
		"recipients": []map[string]any{{"email": "a@x.com"}},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["detail"], `missing "first_name" in data`)

	rec, _ = serve(h, postJSON(t, "/personalize-emails", map[string]any{
		"body": "Hi", "mode": "single", "recipients": []map[string]any{},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmails(t *testing.T) {
	t.Parallel()

	sender := dispatch.SenderFunc(func(_ context.Context, e *dispatch.Email) error {
		if e.To[0] == "b@x.com" {
			return errors.New("bounced")
		}
		return nil
	})
	h := api.New(api.WithTracker(dispatch.New(sender))).Handler()

	rec, body := serve(h, postJSON(t, "/send-emails", map[string]any{
		"subject": "Hello",
		"emails": []map[string]string{
			{"email": "a@x.com", "rendered_body": "Hi A"},
			{"email": "b@x.com", "rendered_body": "Hi B"},
			{"email": "c@x.com", "rendered_body": "Hi C"},
		},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"a@x.com"}, body["sent"])
	assert.Equal(t, []any{"b@x.com", "c@x.com"}, body["failed"])

	rec, _ = serve(h, httptest.NewRequest(http.MethodPost, "/send-emails", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h := api.New(
		api.WithMetrics(metrics.New(reg), reg),
		api.WithChecks(api.Checks{
			"ok":   func(context.Context) error { return nil },
			"down": func(context.Context) error { return errors.New("unreachable") },
		}),
	).Handler()

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, api.StatusHealthy, body["status"])

	rec, body = serve(h, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, api.StatusUnhealthy, body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unreachable", checks["down"].(map[string]any)["error"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailmerge_http_request_duration_seconds")
}

func TestCORS(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/send-emails", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	api.New().Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	srv := api.New()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, "127.0.0.1:0") }()

	cancel()
	require.NoError(t, <-errCh)
}
