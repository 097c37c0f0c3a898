package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ZanzyTHEbar/docchat/docchat/harness"
	"github.com/ZanzyTHEbar/docchat/docchat/harness/adapters"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest/extract"
	"github.com/ZanzyTHEbar/docchat/docchat/session"
)

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureProvider, Code: "Throttling", Message: "Requests rate limit exceeded"}
}

type blankOCR struct{}

func (blankOCR) Recognize(ctx context.Context, image []byte) (string, error) { return "", nil }

// ServerTestSuite exercises the HTTP surface end to end against a stub provider.
type ServerTestSuite struct {
	suite.Suite
	provider ports.Provider
	sessions *session.Manager
	handler  http.Handler
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	if suite.provider == nil {
		suite.provider = adapters.StubProvider{}
	}
	gw := harness.NewGateway(suite.provider, nil, nil, nil, harness.GatewayConfig{Model: "qwen-plus"})
	coord := ingest.NewCoordinator(extract.NewDefaultRegistry(blankOCR{}), nil, ingest.Config{MaxUploadBytes: 64}, zerolog.Nop())
	suite.sessions = session.NewManager(gw, coord, zerolog.Nop())
	suite.handler = New(suite.sessions, Options{Mode: gin.TestMode, Model: "qwen-plus", MaxUploadBytes: 64}, zerolog.Nop()).Handler()
}

func (suite *ServerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		r = httptest.NewRequest(method, path, bytes.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	suite.handler.ServeHTTP(w, r)
	return w
}

func (suite *ServerTestSuite) decode(w *httptest.ResponseRecorder, v any) {
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (suite *ServerTestSuite) newActiveSession() string {
	w := suite.do(http.MethodPost, "/api/sessions", usernameRequest{Username: "Ana"})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	var view sessionView
	suite.decode(w, &view)
	require.Equal(suite.T(), session.StateActive, view.State)
	return view.ID
}

type part struct {
	name        string
	contentType string
	body        []byte
}

func (suite *ServerTestSuite) upload(id string, parts ...part) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := mw.CreatePart(h)
		require.NoError(suite.T(), err)
		_, err = pw.Write(p.body)
		require.NoError(suite.T(), err)
	}
	require.NoError(suite.T(), mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/uploads", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	suite.handler.ServeHTTP(w, r)
	return w
}

func (suite *ServerTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `"model":"qwen-plus"`)
	assert.Contains(suite.T(), w.Body.String(), `"ocr":false`)
}

func (suite *ServerTestSuite) TestUsernameHandshake() {
	w := suite.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(suite.T(), http.StatusCreated, w.Code)
	var view sessionView
	suite.decode(w, &view)
	assert.Equal(suite.T(), session.StateAwaitingUsername, view.State)

	w = suite.do(http.MethodPost, "/api/sessions/"+view.ID+"/messages", messageRequest{Content: "hi"})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w = suite.do(http.MethodPut, "/api/sessions/"+view.ID+"/username", usernameRequest{Username: "  "})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodPut, "/api/sessions/"+view.ID+"/username", usernameRequest{Username: "Ana"})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	suite.decode(w, &view)
	assert.Equal(suite.T(), session.StateActive, view.State)
	assert.Equal(suite.T(), "Ana", view.Username)

	w = suite.do(http.MethodPut, "/api/sessions/"+view.ID+"/username", usernameRequest{Username: "Budi"})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	w = suite.do(http.MethodDelete, "/api/sessions/"+view.ID+"/username", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var cleared sessionView
	suite.decode(w, &cleared)
	assert.Equal(suite.T(), session.StateAwaitingUsername, cleared.State)
	assert.Empty(suite.T(), cleared.Username)
	assert.NotContains(suite.T(), w.Body.String(), `"username"`)
}

func (suite *ServerTestSuite) TestSendAndListMessages() {
	id := suite.newActiveSession()

	w := suite.do(http.MethodPost, "/api/sessions/"+id+"/messages", messageRequest{Content: "halo"})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	var resp messageResponse
	suite.decode(w, &resp)
	assert.False(suite.T(), resp.Failed)
	assert.Contains(suite.T(), resp.Reply.Content, "halo")
	assert.Equal(suite.T(), "qwen-plus", resp.Model)

	w = suite.do(http.MethodPost, "/api/sessions/"+id+"/messages", map[string]string{})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var list struct {
		Messages []map[string]any `json:"messages"`
	}
	suite.decode(w, &list)
	require.Len(suite.T(), list.Messages, 2)
	assert.Equal(suite.T(), "user", list.Messages[0]["role"])
	assert.Equal(suite.T(), "assistant", list.Messages[1]["role"])
}

func (suite *ServerTestSuite) TestUploadOutcomes() {
	id := suite.newActiveSession()

	w := suite.upload(id,
		part{name: "data.csv", contentType: "text/csv", body: []byte("a,b\n1,2\n")},
		part{name: "empty.csv", contentType: "text/csv"},
		part{name: "setup.exe", contentType: "application/x-msdownload", body: []byte("MZ")},
		part{name: "big.txt", contentType: "text/plain", body: bytes.Repeat([]byte("x"), 100)},
	)
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Outcomes []ingest.Outcome `json:"outcomes"`
	}
	suite.decode(w, &resp)
	require.Len(suite.T(), resp.Outcomes, 4)
	assert.Equal(suite.T(), ingest.Appended, resp.Outcomes[0].Kind)
	assert.Equal(suite.T(), ingest.Warned, resp.Outcomes[1].Kind)
	assert.Equal(suite.T(), ingest.Warned, resp.Outcomes[2].Kind)
	assert.Equal(suite.T(), ingest.Warned, resp.Outcomes[3].Kind)
	assert.Contains(suite.T(), resp.Outcomes[3].Reason, "input_too_large")

	// document text is for the model only
	w = suite.do(http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	assert.JSONEq(suite.T(), `{"messages":[]}`, w.Body.String())

	sess, ok := suite.sessions.Get(id)
	require.True(suite.T(), ok)
	assert.Len(suite.T(), sess.Snapshot(), 2)
}

func (suite *ServerTestSuite) TestUploadRequiresActiveSession() {
	w := suite.do(http.MethodPost, "/api/sessions", nil)
	var view sessionView
	suite.decode(w, &view)

	w = suite.upload(view.ID, part{name: "a.txt", contentType: "text/plain", body: []byte("x")})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func (suite *ServerTestSuite) TestUploadWithoutFiles() {
	id := suite.newActiveSession()
	w := suite.do(http.MethodPost, "/api/sessions/"+id+"/uploads", map[string]string{"files": "nope"})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *ServerTestSuite) TestResetAndDelete() {
	id := suite.newActiveSession()
	suite.do(http.MethodPost, "/api/sessions/"+id+"/messages", messageRequest{Content: "one"})

	w := suite.do(http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var view sessionView
	suite.decode(w, &view)
	assert.Equal(suite.T(), 0, view.Turns)
	assert.Equal(suite.T(), session.StateActive, view.State)

	w = suite.do(http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)

	w = suite.do(http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	w = suite.do(http.MethodPost, "/api/sessions/"+id+"/messages", messageRequest{Content: "hi"})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func TestSendMessage_ProviderFailureIsReportedInTurn(t *testing.T) {
	s := &ServerTestSuite{provider: failingProvider{}}
	s.SetT(t)
	s.SetupTest()

	id := s.newActiveSession()
	w := s.do(http.MethodPost, "/api/sessions/"+id+"/messages", messageRequest{Content: "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp messageResponse
	s.decode(w, &resp)
	assert.True(t, resp.Failed)
	assert.True(t, strings.HasPrefix(resp.Reply.Content, session.ErrorMarker))
	assert.Contains(t, resp.Reply.Content, "Throttling")
}
