package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/assessment"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/stretchr/testify/suite"
)

type fakeAssessor struct {
	result    assessment.Result
	err       error
	panicWith any

	gotRequest  assessment.Request
	gotRaw      audio.RawAudio
	gotAudio    []byte
	gotFilename string
}

func (f *fakeAssessor) Assess(_ context.Context, req assessment.Request, raw audio.RawAudio) (assessment.Result, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.gotRequest = req
	f.gotRaw = raw
	return f.result, f.err
}

func (f *fakeAssessor) AssessStream(_ context.Context, req assessment.Request, r io.Reader, filename string) (assessment.Result, error) {
	f.gotRequest = req
	f.gotFilename = filename
	data, err := io.ReadAll(r)
	if err != nil {
		return assessment.Result{}, err
	}
	f.gotAudio = data
	return f.result, f.err
}

func (f *fakeAssessor) Catalog() model.ModelCatalog {
	return model.NewModelCatalog(model.DefaultModels(), model.DefaultModelName)
}

type ServerSuite struct {
	suite.Suite
	assessor *fakeAssessor
	handler  http.Handler
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.assessor = &fakeAssessor{}
	srv, err := New(s.assessor, WithMaxUploadBytes(1<<20))
	s.Require().NoError(err)
	s.handler = srv.Handler()
}

func (s *ServerSuite) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (s *ServerSuite) multipartRequest(fields map[string]string, audioBytes []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	if audioBytes != nil {
		part, err := mw.CreateFormFile("audio", "clip.webm")
		s.Require().NoError(err)
		_, err = part.Write(audioBytes)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *ServerSuite) TestHealth() {
	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", body["status"])
}

func (s *ServerSuite) TestModels() {
	rec, body := s.do(httptest.NewRequest(http.MethodGet, "/api/models", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("gemini-2.0-flash", body["default"])
	s.Len(body["models"], 5)
}

func (s *ServerSuite) TestUploadAssessment() {
	rating := 85
	s.assessor.result = assessment.Result{
		RequestID:    "req-1",
		Text:         "Phrase (Input): buenos días",
		Model:        "gemini-2.0-flash",
		Provider:     model.ProviderGemini,
		Elapsed:      1500 * time.Millisecond,
		PromptTokens: 42,
		TotalTokens:  100,
		Rating:       &rating,
	}

	req := s.multipartRequest(map[string]string{"language": "Spanish", "phrase": "buenos días", "model": "gemini-2.0-flash"}, []byte("webm-bytes"))
	rec, body := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.Equal("Spanish", s.assessor.gotRequest.Language)
	s.Equal("buenos días", s.assessor.gotRequest.Phrase)
	s.Equal("clip.webm", s.assessor.gotFilename)
	s.Equal([]byte("webm-bytes"), s.assessor.gotAudio)

	s.Equal("Phrase (Input): buenos días", body["text"])
	s.EqualValues(42, body["prompt_tokens"])
	s.EqualValues(100, body["total_tokens"])
	s.EqualValues(1500, body["elapsed_ms"])
	s.EqualValues(85, body["rating"])
}

func (s *ServerSuite) TestUploadWithoutAudioIsBadRequest() {
	rec, body := s.do(s.multipartRequest(map[string]string{"language": "Spanish"}, nil))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("invalid_request", body["kind"])
}

func (s *ServerSuite) TestSamplesAssessment() {
	s.assessor.result = assessment.Result{Text: "ok", Model: "gemini-2.0-flash"}
	payload := `{"language":"Spanish","phrase":"hola","sample_rate":16000,"samples":[1,2,3,4]}`

	req := httptest.NewRequest(http.MethodPost, "/api/assessments/samples", bytes.NewBufferString(payload))
	rec, body := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.Equal("ok", body["text"])
	s.Equal(16000, s.assessor.gotRaw.SampleRate)
	s.Equal([]int{4}, s.assessor.gotRaw.Shape)
	s.Equal([]int{1, 2, 3, 4}, s.assessor.gotRaw.Samples)
}

func (s *ServerSuite) TestSamplesRejectsUnknownFields() {
	req := httptest.NewRequest(http.MethodPost, "/api/assessments/samples", bytes.NewBufferString(`{"sampels":[]}`))
	rec, _ := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestErrorKindsMapToStatus() {
	cases := []struct {
		kind   assessment.Kind
		status int
	}{
		{assessment.KindUnsupportedAudioShape, http.StatusUnprocessableEntity},
		{assessment.KindDecode, http.StatusUnprocessableEntity},
		{assessment.KindInvalidRequest, http.StatusBadRequest},
		{assessment.KindRemoteCall, http.StatusBadGateway},
		{assessment.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.assessor.err = &assessment.Error{Kind: tc.kind, Err: fmt.Errorf("detail for %s", tc.kind)}
		req := httptest.NewRequest(http.MethodPost, "/api/assessments/samples", bytes.NewBufferString(`{"sample_rate":1,"samples":[1]}`))
		rec, body := s.do(req)
		s.Equal(tc.status, rec.Code, string(tc.kind))
		s.Equal(string(tc.kind), body["kind"])
		s.Contains(body["error"], "detail for")
	}
}

func (s *ServerSuite) TestForeignErrorIsHidden() {
	s.assessor.err = errors.New("secret internals")
	req := httptest.NewRequest(http.MethodPost, "/api/assessments/samples", bytes.NewBufferString(`{"sample_rate":1,"samples":[1]}`))
	rec, body := s.do(req)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("internal server error", body["error"])
}

func (s *ServerSuite) TestPanicIsRecovered() {
	s.assessor.panicWith = "boom"
	req := httptest.NewRequest(http.MethodPost, "/api/assessments/samples", bytes.NewBufferString(`{"sample_rate":1,"samples":[1]}`))
	rec, body := s.do(req)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("internal_error", body["kind"])
}

func (s *ServerSuite) TestWrongMethod() {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assessments", nil))
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *ServerSuite) TestNewRequiresAssessor() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServerSuite) TestRunStopsOnCancel() {
	srv, err := New(s.assessor)
	s.Require().NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}
}
