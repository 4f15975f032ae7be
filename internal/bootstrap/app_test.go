package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"critique-backend/internal/conversation"
	"critique-backend/internal/programs"
	"critique-backend/internal/queue"
	"critique-backend/internal/shared/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                     "dev",
		ObjectStoreType:         "local",
		LocalStoreDir:           t.TempDir(),
		StateStoreType:          "memory",
		StateTTL:                time.Minute,
		QueueType:               "none",
		ExcerptLength:           1000,
		MaxStepAttempts:         5,
		EventRegistrationPolicy: "accumulate",
		WebhookSecret:           "s3cret",
	}
}

func postEvent(r http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestBuildMemoryStack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.Nil(t, app.DB)
	require.IsType(t, &conversation.MemoryStateStore{}, app.States)
	require.IsType(t, queue.NoopClient{}, app.Queue)
	require.NotNil(t, app.QueryRouter)
	require.NotNil(t, app.BotRouter)
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Env = "production"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuildRejectsIncompleteBackends(t *testing.T) {
	cases := map[string]func(*config.Config){
		"redis state":  func(c *config.Config) { c.StateStoreType = "redis" },
		"redis queue":  func(c *config.Config) { c.QueueType = "redis" },
		"sqs queue":    func(c *config.Config) { c.QueueType = "sqs" },
		"rabbit queue": func(c *config.Config) { c.QueueType = "rabbitmq" },
		"s3 store":     func(c *config.Config) { c.ObjectStoreType = "s3" },
		"minio store":  func(c *config.Config) { c.ObjectStoreType = "minio" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig(t)
			mutate(&cfg)
			_, err := Build(context.Background(), cfg)
			require.Error(t, err)
		})
	}
}

func TestGameRegistrationVisibleThroughQueryAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	resp := postEvent(app.BotRouter, "", `{"user_id":"42","type":"command","command":"/start"}`)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	for _, body := range []string{
		`{"user_id":"42","type":"command","command":"/start"}`,
		`{"user_id":"42","type":"selection","selection":"game"}`,
		`{"user_id":"42","type":"text","text":"Speedy"}`,
	} {
		resp = postEvent(app.BotRouter, "s3cret", body)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	require.Contains(t, resp.Body.String(), "Speedy")

	req := httptest.NewRequest(http.MethodGet, "/game-registrants", nil)
	list := httptest.NewRecorder()
	app.QueryRouter.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	require.Equal(t, "42", docs[0]["user_id"])
	require.Equal(t, "Speedy", docs[0]["player_name"])
}

func converse(t *testing.T, r http.Handler, bodies ...string) *httptest.ResponseRecorder {
	t.Helper()
	var resp *httptest.ResponseRecorder
	for _, body := range bodies {
		resp = postEvent(r, "s3cret", body)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}
	return resp
}

func listDocs(t *testing.T, r http.Handler, path string) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &docs))
	return docs
}

func registerAlice(t *testing.T, app *App) {
	t.Helper()
	resp := converse(t, app.BotRouter,
		`{"user_id":"alice","type":"command","command":"/start"}`,
		`{"user_id":"alice","type":"selection","selection":"critics"}`,
		`{"user_id":"alice","type":"text","text":"Alice"}`,
		`{"user_id":"alice","type":"text","text":"Smith"}`,
		`{"user_id":"alice","type":"text","text":"+1 555 0100"}`,
	)
	require.Contains(t, resp.Body.String(), "Cooking Show")
}

func TestProfileAndTextCritiqueVisibleThroughQueryAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := memoryConfig(t)
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	registerAlice(t, app)

	critics := listDocs(t, app.QueryRouter, "/critics")
	require.Len(t, critics, 1)
	require.Equal(t, "alice", critics[0]["user_id"])
	require.Equal(t, "Alice", critics[0]["first_name"])
	require.Equal(t, "Smith", critics[0]["last_name"])

	resp := converse(t, app.BotRouter,
		`{"user_id":"alice","type":"selection","selection":"Cooking Show"}`,
		`{"user_id":"alice","type":"selection","selection":"text"}`,
		`{"user_id":"alice","type":"text","text":"Loved the risotto episode"}`,
	)
	require.Contains(t, resp.Body.String(), "Critique received!")

	critiques := listDocs(t, app.QueryRouter, "/critiques/by-program/Cooking%20Show")
	require.Len(t, critiques, 1)
	require.Equal(t, "alice", critiques[0]["user_id"])
	require.Equal(t, "text", critiques[0]["content_type"])
	require.Equal(t, "Loved the risotto episode", critiques[0]["text_content"])

	path, ok := critiques[0]["file_path"].(string)
	require.True(t, ok)
	artifact, err := os.ReadFile(filepath.Join(cfg.LocalStoreDir, filepath.FromSlash(path)))
	require.NoError(t, err)
	require.Equal(t, "Loved the risotto episode", string(artifact))
}

func TestVoiceCritiqueNotListedWhenArtifactWriteFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := memoryConfig(t)
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	// A file where the program folder belongs makes every artifact write under it fail.
	blocker := filepath.Join(cfg.LocalStoreDir, programs.Slug("Sports Highlights"))
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	registerAlice(t, app)

	resp := converse(t, app.BotRouter,
		`{"user_id":"alice","type":"selection","selection":"Sports Highlights"}`,
		`{"user_id":"alice","type":"selection","selection":"voice"}`,
		`{"user_id":"alice","type":"voice","voice":{"data":"T2dnUw==","duration":9,"mime_type":"audio/ogg"}}`,
	)
	require.Contains(t, resp.Body.String(), "Unexpected error")
	require.NotContains(t, resp.Body.String(), "Critique received!")

	require.Empty(t, listDocs(t, app.QueryRouter, "/critiques/by-program/Sports%20Highlights"))
	require.Empty(t, listDocs(t, app.QueryRouter, "/critiques/by-user/alice"))
	require.Len(t, listDocs(t, app.QueryRouter, "/critics"), 1)
}

func TestHealthReportsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	app.QueryRouter.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"ok":true`)
}
