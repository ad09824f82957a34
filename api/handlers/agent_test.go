package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/agentview/console/internal/db"
	"github.com/agentview/console/internal/model"
	"github.com/agentview/console/internal/repository"
	"github.com/agentview/console/internal/stream"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	repo := repository.NewAgentRepository(testDB)
	streams := stream.NewService(repo)
	t.Cleanup(streams.Close)

	r := gin.New()
	api := r.Group("/api")
	NewAgentHandler(repo, streams).RegisterRoutes(api)
	ws := r.Group("/ws")
	NewStreamHandler(streams).RegisterRoutes(ws)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createAgent(t *testing.T, r *gin.Engine, name string) AgentResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/agents", gin.H{"name": name, "task": "build the release"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp AgentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestAgentAPI_CreateAndGet(t *testing.T) {
	r := newTestRouter(t)

	created := createAgent(t, r, "worker-1")
	if created.Name != "worker-1" || created.Status != string(model.AgentStatusRunning) {
		t.Errorf("unexpected created agent: %+v", created)
	}

	w := doJSON(t, r, http.MethodGet, "/api/agents/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got AgentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.ID != created.ID || got.Task != "build the release" {
		t.Errorf("unexpected agent: %+v", got)
	}
}

func TestAgentAPI_CreateValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/agents", gin.H{"task": "no name"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	createAgent(t, r, "worker-1")
	w = doJSON(t, r, http.MethodPost, "/api/agents", gin.H{"name": "worker-1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if resp.Error.Code != "NAME_TAKEN" {
		t.Errorf("expected NAME_TAKEN, got %s", resp.Error.Code)
	}
}

func TestAgentAPI_GetNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/agents/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	if resp.Error.Code != "AGENT_NOT_FOUND" {
		t.Errorf("expected AGENT_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestAgentAPI_List(t *testing.T) {
	r := newTestRouter(t)

	createAgent(t, r, "worker-1")
	createAgent(t, r, "worker-2")

	w := doJSON(t, r, http.MethodGet, "/api/agents", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var agents []AgentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &agents); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(agents))
	}
}

func TestAgentAPI_Delete(t *testing.T) {
	r := newTestRouter(t)
	created := createAgent(t, r, "worker-1")

	w := doJSON(t, r, http.MethodDelete, "/api/agents/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/api/agents/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestAgentAPI_UpdateStatus(t *testing.T) {
	r := newTestRouter(t)
	created := createAgent(t, r, "worker-1")

	w := doJSON(t, r, http.MethodPost, "/api/agents/"+created.ID+"/status", gin.H{"status": "stopped"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/agents/"+created.ID+"/status", gin.H{"status": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestAgentAPI_PublishAndGetLogs(t *testing.T) {
	r := newTestRouter(t)
	created := createAgent(t, r, "worker-1")

	w := doJSON(t, r, http.MethodPost, "/api/agents/"+created.ID+"/logs", gin.H{
		"lines": []gin.H{
			{"content": "step 1", "timestamp": 100},
			{"content": "step 2", "timestamp": 200, "stream": "stderr"},
		},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	// The cursor query returns only strictly newer lines
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/agents/%s/logs?since=100", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var lines []model.LogLine
	if err := json.Unmarshal(w.Body.Bytes(), &lines); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(lines) != 1 || lines[0].Content != "step 2" || lines[0].Stream != "stderr" {
		t.Errorf("expected [step 2], got %+v", lines)
	}
}

func TestAgentAPI_PublishUnknownAgent(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/agents/missing/logs", gin.H{
		"lines": []gin.H{{"content": "x"}},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAgentAPI_PublishValidation(t *testing.T) {
	r := newTestRouter(t)
	created := createAgent(t, r, "worker-1")

	w := doJSON(t, r, http.MethodPost, "/api/agents/"+created.ID+"/logs", gin.H{"lines": []gin.H{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}
