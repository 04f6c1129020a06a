// Package assessment runs one pronunciation assessment end to end: normalize the audio,
// build the prompt, call the selected model and shape the result.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/prompt"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	"github.com/google/uuid"
)

type Request struct {
	Language string
	Phrase   string
	// Model is a name from the catalog. Blank selects the catalog default.
	Model string
}

type Result struct {
	RequestID    string
	Text         string
	Model        string
	Provider     model.Provider
	Elapsed      time.Duration
	PromptTokens int64
	OutputTokens int64
	TotalTokens  int64
	// Rating is nil when the text carries no parsable overall rating.
	Rating   *int
	Report   *model.PronunciationReport
	Metadata model.GenerationMetadata
}

type provider struct {
	newGenerator model.NewAssessmentGeneratorFunc
	options      model.AssessmentOptions
}

type Service struct {
	normalizer       *audio.Normalizer
	catalog          model.ModelCatalog
	providers        map[model.Provider]provider
	observer         Observer
	removeAudioAfter bool
	now              func() time.Time
	newID            func() string
}

type Option func(*Service)

func WithCatalog(catalog model.ModelCatalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithProvider registers the generator factory used for every catalog model of p.
// opts carries the provider credentials and defaults; Model is filled per request.
func WithProvider(p model.Provider, newGenerator model.NewAssessmentGeneratorFunc, opts model.AssessmentOptions) Option {
	return func(s *Service) {
		if newGenerator == nil {
			return
		}
		s.providers[p] = provider{newGenerator: newGenerator, options: opts}
	}
}

func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithRemoveAudioAfter deletes the canonical file once the request finishes, successful or not.
func WithRemoveAudioAfter(remove bool) Option {
	return func(s *Service) {
		s.removeAudioAfter = remove
	}
}

func NewService(normalizer *audio.Normalizer, opts ...Option) (*Service, error) {
	if normalizer == nil {
		return nil, utils.WrapIfNotNil(errors.New("normalizer is required"))
	}
	s := &Service{
		normalizer: normalizer,
		catalog:    model.NewModelCatalog(model.DefaultModels(), model.DefaultModelName),
		providers:  make(map[model.Provider]provider),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Service) Catalog() model.ModelCatalog {
	return s.catalog
}

// Assess normalizes raw samples and assesses them.
func (s *Service) Assess(ctx context.Context, req Request, raw audio.RawAudio) (Result, error) {
	return s.run(ctx, req, func(ctx context.Context) (model.AudioHandle, error) {
		return s.normalizer.NormalizeSamples(ctx, raw)
	})
}

// AssessStream decodes a container file (wav, or anything the transcoder accepts) and assesses it.
func (s *Service) AssessStream(ctx context.Context, req Request, r io.Reader, filename string) (Result, error) {
	return s.run(ctx, req, func(ctx context.Context) (model.AudioHandle, error) {
		return s.normalizer.NormalizeStream(ctx, r, filename)
	})
}

func (s *Service) run(
	ctx context.Context,
	req Request,
	normalize func(ctx context.Context) (model.AudioHandle, error),
) (result Result, err error) {
	requestID := s.newID()
	ctx = logging.ContextWithFields(ctx, map[string]any{"request_id": requestID})
	log := logging.NewLogger(ctx)
	start := s.now()
	track := newTracker(requestID, s.observer)

	defer func() {
		if r := recover(); r != nil {
			utils.PrintStack("assessment", log)
			result = Result{}
			err = newError(KindInternal, utils.RecoveredError(r))
		}
		if err != nil {
			log.Errorf("error: %v", err)
			track.advance(StateFailed)
			return
		}
		track.advance(StateDone)
		log.Infof("assessment_done model=%s elapsed=%s total_tokens=%d", result.Model, result.Elapsed, result.TotalTokens)
	}()

	info, ok := s.catalog.Resolve(req.Model)
	if !ok {
		return Result{}, newError(KindInvalidRequest, fmt.Errorf("unsupported model %q", req.Model))
	}
	p, ok := s.providers[info.Provider]
	if !ok {
		return Result{}, newError(KindInvalidRequest, fmt.Errorf("provider %q is not configured for model %q", info.Provider, info.Name))
	}

	track.advance(StateUploading)
	handle, err := normalize(ctx)
	if err != nil {
		return Result{}, audioError(err)
	}
	if s.removeAudioAfter {
		defer func() {
			if rmErr := s.normalizer.Store().Remove(handle); rmErr != nil {
				log.Warnf("remove audio %s: %v", handle.Path, rmErr)
			}
		}()
	}

	track.advance(StatePrompting)
	text := prompt.Build(req.Language, req.Phrase)
	opts := p.options
	opts.Model = info.Name
	generator, err := p.newGenerator(handle, text, opts)
	if err != nil {
		return Result{}, newError(KindInvalidRequest, err)
	}

	track.advance(StateAwaitingResponse)
	log.Infof("assessment_request model=%s provider=%s audio_id=%s", info.Name, info.Provider, handle.ID)
	assessment, meta, err := generator.Generate(ctx)
	if err != nil {
		return Result{}, newError(KindRemoteCall, err)
	}

	result = Result{
		RequestID:    requestID,
		Text:         assessment.Text,
		Model:        info.Name,
		Provider:     info.Provider,
		Elapsed:      s.now().Sub(start),
		PromptTokens: assessment.Usage.PromptTokens,
		OutputTokens: assessment.Usage.OutputTokens,
		TotalTokens:  assessment.Usage.TotalTokens,
		Report:       assessment.Report,
		Metadata:     meta,
	}
	if assessment.Report != nil {
		rating := assessment.Report.RatingPercent
		result.Rating = &rating
	} else if rating, ok := prompt.ParseRating(assessment.Text); ok {
		result.Rating = &rating
	}
	if strings.TrimSpace(assessment.Model) != "" {
		result.Model = assessment.Model
	}
	return result, nil
}
