package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/gateway"
	"github.com/synod-dev/synod/internal/logging"
	"github.com/synod-dev/synod/internal/store"
)

type scripted struct {
	content string
	err     error
}

type fakeCaller struct {
	mu     sync.Mutex
	queues map[string][]scripted
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{queues: make(map[string][]scripted)}
}

func (f *fakeCaller) script(model string, outcomes ...scripted) {
	f.queues[model] = append(f.queues[model], outcomes...)
}

func (f *fakeCaller) Complete(_ context.Context, req gateway.Request) (*gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.queues[req.Model]
	if len(queue) == 0 {
		return nil, fmt.Errorf("unscripted call to %s", req.Model)
	}
	next := queue[0]
	f.queues[req.Model] = queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	if req.OnToken != nil {
		req.OnToken(next.content)
	}
	return &gateway.Result{
		Model:   req.Model,
		Content: next.content,
		Usage:   gateway.Usage{TotalTokens: 10},
		Latency: time.Millisecond,
	}, nil
}

func newTestServer(t *testing.T, caller *fakeCaller) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), logging.NopLogger())
	if err != nil {
		t.Fatal(err)
	}
	orch := council.New(caller, st, logging.NopLogger(), council.Options{
		Participants:       []string{"a/one", "b/two"},
		Synthesizer:        "chair/model",
		AnonymizeSynthesis: true,
	})
	return New(st, orch, logging.NopLogger(), nil), st
}

func scriptHappyPath(caller *fakeCaller) {
	for _, m := range []string{"a/one", "b/two"} {
		caller.script(m,
			scripted{content: "answer from " + m},
			scripted{content: "FINAL RANKING:\n1. Response 01\n2. Response 02"},
		)
	}
	caller.script("chair/model", scripted{content: "the final answer"})
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestConversationCRUD(t *testing.T) {
	srv, _ := newTestServer(t, newFakeCaller())
	h := srv.Handler()

	rec := doJSON(t, h, "POST", "/api/conversations", `{"content": "why is the sky blue?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"why is the sky blue?"`) {
		t.Errorf("create body missing title: %s", body)
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = doJSON(t, h, "GET", "/api/conversations/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/api/conversations", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatalf("list status = %d body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, "DELETE", "/api/conversations/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/api/conversations/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestMessageStreamsAndPersists(t *testing.T) {
	caller := newFakeCaller()
	scriptHappyPath(caller)
	srv, st := newTestServer(t, caller)
	h := srv.Handler()

	conv, err := st.Create("why?")
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, h, "POST", "/api/conversations/"+conv.ID+"/message", `{"content": "why?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("message status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`"stage_start"`, `"model_complete"`, `"stage_complete"`,
		`"synthesis_complete"`, `"metrics_complete"`, `"session_complete"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %s", want)
		}
	}

	loaded, err := st.Load(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(loaded.Messages))
	}
	assistant := loaded.Messages[1]
	if assistant.Role != "assistant" || assistant.Content != "the final answer" {
		t.Errorf("assistant = %+v", assistant)
	}
	if assistant.Session == nil || len(assistant.Session.Rounds) != 2 {
		t.Errorf("session = %+v", assistant.Session)
	}

	// Run completed cleanly: no pending checkpoint and no lingering lock.
	if _, err := st.LoadPending(conv.ID); !errors.Is(err, errors.ErrNoPendingState) {
		t.Errorf("pending after run = %v", err)
	}
	if _, locked := st.IsLocked(conv.ID); locked {
		t.Error("lock still held after run")
	}
}

func TestMessageRejectsConcurrentWriter(t *testing.T) {
	srv, st := newTestServer(t, newFakeCaller())
	conv, _ := st.Create("q")

	lock, err := st.AcquireLock(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	rec := doJSON(t, srv.Handler(), "POST", "/api/conversations/"+conv.ID+"/message", `{"content": "q"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestMessageValidation(t *testing.T) {
	srv, st := newTestServer(t, newFakeCaller())
	conv, _ := st.Create("q")
	h := srv.Handler()

	rec := doJSON(t, h, "POST", "/api/conversations/"+conv.ID+"/message", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/api/conversations/"+conv.ID+"/message", `{"content": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty content status = %d", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/api/conversations/missing/message", `{"content": "q"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d", rec.Code)
	}
}

func TestRetrySynthesisReplacesOnlySynthesis(t *testing.T) {
	caller := newFakeCaller()
	for _, m := range []string{"a/one", "b/two"} {
		caller.script(m,
			scripted{content: "answer from " + m},
			scripted{content: "FINAL RANKING:\n1. Response 01\n2. Response 02"},
		)
	}
	caller.script("chair/model", scripted{err: &errors.GatewayError{
		Model:    "chair/model",
		Category: errors.CategoryTransient,
		Err:      errors.New("boom"),
	}})

	srv, st := newTestServer(t, caller)
	h := srv.Handler()
	conv, _ := st.Create("q")

	rec := doJSON(t, h, "POST", "/api/conversations/"+conv.ID+"/message", `{"content": "q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("message status = %d", rec.Code)
	}

	loaded, _ := st.Load(conv.ID)
	failed := loaded.Messages[1].Session
	if failed.Synthesis == nil || !failed.Synthesis.Failed() {
		t.Fatalf("synthesis = %+v, want failure marker", failed.Synthesis)
	}
	roundsBefore := failed.Rounds

	caller.script("chair/model", scripted{content: "second try"})
	rec = doJSON(t, h, "POST", "/api/conversations/"+conv.ID+"/retry-synthesis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"synthesis_complete"`) {
		t.Error("retry stream missing synthesis_complete")
	}

	loaded, _ = st.Load(conv.ID)
	retried := loaded.Messages[1].Session
	if retried.Synthesis.Failed() || retried.Synthesis.Content != "second try" {
		t.Errorf("retried synthesis = %+v", retried.Synthesis)
	}
	if loaded.Messages[1].Content != "second try" {
		t.Errorf("assistant content = %q", loaded.Messages[1].Content)
	}
	if len(retried.Rounds) != len(roundsBefore) {
		t.Errorf("rounds changed: %d -> %d", len(roundsBefore), len(retried.Rounds))
	}
	for i := range roundsBefore {
		if len(retried.Rounds[i].Responses) != len(roundsBefore[i].Responses) {
			t.Errorf("round %d responses changed", i)
		}
	}
}

func TestRetrySynthesisWithoutSession(t *testing.T) {
	srv, st := newTestServer(t, newFakeCaller())
	conv, _ := st.Create("q")

	rec := doJSON(t, srv.Handler(), "POST", "/api/conversations/"+conv.ID+"/retry-synthesis", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, newFakeCaller())
	rec := doJSON(t, srv.Handler(), "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// enrichRecorder captures what the orchestrator was asked with.
type enrichRecorder struct {
	called  bool
	content string
}

func (e *enrichRecorder) Enrich(_ context.Context, content string) (string, error) {
	e.called = true
	e.content = content
	return "retrieved context", nil
}

func TestMessageUsesEnricher(t *testing.T) {
	caller := newFakeCaller()
	scriptHappyPath(caller)

	st, err := store.New(t.TempDir(), logging.NopLogger())
	if err != nil {
		t.Fatal(err)
	}
	orch := council.New(caller, st, logging.NopLogger(), council.Options{
		Participants: []string{"a/one", "b/two"},
		Synthesizer:  "chair/model",
	})
	enricher := &enrichRecorder{}
	srv := New(st, orch, logging.NopLogger(), enricher)

	conv, _ := st.Create("q")
	rec := doJSON(t, srv.Handler(), "POST", "/api/conversations/"+conv.ID+"/message", `{"content": "q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !enricher.called || enricher.content != "q" {
		t.Errorf("enricher = %+v", enricher)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body, err)
	}
}
