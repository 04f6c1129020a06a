package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/assessment"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type assessmentResponse struct {
	RequestID    string                     `json:"request_id"`
	Text         string                     `json:"text"`
	Model        string                     `json:"model"`
	Provider     model.Provider             `json:"provider"`
	ElapsedMs    int64                      `json:"elapsed_ms"`
	PromptTokens int64                      `json:"prompt_tokens"`
	OutputTokens int64                      `json:"output_tokens"`
	TotalTokens  int64                      `json:"total_tokens"`
	Rating       *int                       `json:"rating,omitempty"`
	Report       *model.PronunciationReport `json:"report,omitempty"`
}

type samplesRequest struct {
	Language   string `json:"language"`
	Phrase     string `json:"phrase"`
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
	Shape      []int  `json:"shape"`
	Samples    []int  `json:"samples"`
}

type modelsResponse struct {
	Default string            `json:"default"`
	Models  []model.ModelInfo `json:"models"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	catalog := s.assessor.Catalog()
	writeJSON(w, http.StatusOK, modelsResponse{Default: catalog.DefaultModel(), Models: catalog.Models()})
}

// handleAssessUpload takes multipart fields audio (file), language, phrase and model.
func (s *Server) handleAssessUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.NewLogger(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		log.Errorf("error: %v", err)
		writeBadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		log.Errorf("error: %v", err)
		writeBadRequest(w, "audio file is required")
		return
	}
	defer file.Close()

	req := assessment.Request{
		Language: strings.TrimSpace(r.FormValue("language")),
		Phrase:   strings.TrimSpace(r.FormValue("phrase")),
		Model:    strings.TrimSpace(r.FormValue("model")),
	}
	result, err := s.assessor.AssessStream(r.Context(), req, file, header.Filename)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) handleAssessSamples(w http.ResponseWriter, r *http.Request) {
	log := logging.NewLogger(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var body samplesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		log.Errorf("error: %v", err)
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	req := assessment.Request{Language: body.Language, Phrase: body.Phrase, Model: body.Model}
	raw := audio.RawAudio{SampleRate: body.SampleRate, Shape: body.Shape, Samples: body.Samples}
	if len(raw.Shape) == 0 {
		raw.Shape = []int{len(raw.Samples)}
	}
	result, err := s.assessor.Assess(r.Context(), req, raw)
	if err != nil {
		writeAssessmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

func toResponse(result assessment.Result) assessmentResponse {
	return assessmentResponse{
		RequestID:    result.RequestID,
		Text:         result.Text,
		Model:        result.Model,
		Provider:     result.Provider,
		ElapsedMs:    result.Elapsed.Milliseconds(),
		PromptTokens: result.PromptTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.TotalTokens,
		Rating:       result.Rating,
		Report:       result.Report,
	}
}

func statusForKind(kind assessment.Kind) int {
	switch kind {
	case assessment.KindUnsupportedAudioShape, assessment.KindDecode:
		return http.StatusUnprocessableEntity
	case assessment.KindInvalidRequest:
		return http.StatusBadRequest
	case assessment.KindRemoteCall:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeAssessmentError(w http.ResponseWriter, err error) {
	kind := assessment.KindOf(err)
	message := err.Error()
	var ae *assessment.Error
	if !errors.As(err, &ae) {
		message = "internal server error"
	}
	writeJSON(w, statusForKind(kind), errorResponse{Error: message, Kind: string(kind)})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Kind: string(assessment.KindInvalidRequest)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
