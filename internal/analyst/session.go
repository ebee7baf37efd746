// Package analyst drives one report from PDF text to metrics and analysis.
package analyst

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/report-analyst/internal/config"
	"github.com/sells-group/report-analyst/internal/llm"
	"github.com/sells-group/report-analyst/internal/metrics"
	"github.com/sells-group/report-analyst/internal/model"
	"github.com/sells-group/report-analyst/internal/ocr"
	"github.com/sells-group/report-analyst/internal/parse"
	"github.com/sells-group/report-analyst/internal/prompt"
)

// State is a step in a session's lifecycle.
type State int

const (
	StateIdle State = iota
	StateTextExtracted
	StateMetricsExtracting
	StateMetricsReady
	StateMetricsFailed
	StateAnalysisGenerating
	StateAnalysisReady
	StateAnalysisFailed
	StateRefining
	StateRefineFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTextExtracted:
		return "text_extracted"
	case StateMetricsExtracting:
		return "metrics_extracting"
	case StateMetricsReady:
		return "metrics_ready"
	case StateMetricsFailed:
		return "metrics_failed"
	case StateAnalysisGenerating:
		return "analysis_generating"
	case StateAnalysisReady:
		return "analysis_ready"
	case StateAnalysisFailed:
		return "analysis_failed"
	case StateRefining:
		return "refining"
	case StateRefineFailed:
		return "refine_failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a completion call is in flight.
func (s State) Busy() bool {
	return s == StateMetricsExtracting || s == StateAnalysisGenerating || s == StateRefining
}

// Completion phases, used in logs and cost attribution.
const (
	PhaseExtract      = "extract"
	PhaseExtractShort = "extract_short"
	PhaseAnalysis     = "analysis"
	PhaseRefine       = "refine"
)

// Settings bounds the completion requests a session makes.
type Settings struct {
	Model               string
	ExtractTemperature  float64
	AnalysisTemperature float64
	MaxTokens           int
	MaxInputChars       int
	ShortInputChars     int
}

// DefaultSettings returns the built-in request settings.
func DefaultSettings() Settings {
	return Settings{
		ExtractTemperature:  0.1,
		AnalysisTemperature: 0.7,
		MaxTokens:           4096,
		MaxInputChars:       12000,
		ShortInputChars:     4000,
	}
}

// SettingsFromConfig converts LLM config to Settings. Zero values keep the
// defaults, except temperatures, which are taken as configured.
func SettingsFromConfig(cfg config.LLMConfig) Settings {
	s := DefaultSettings()
	s.Model = cfg.ResolvedModel()
	s.ExtractTemperature = cfg.ExtractTemperature
	s.AnalysisTemperature = cfg.AnalysisTemperature
	if cfg.MaxTokens > 0 {
		s.MaxTokens = cfg.MaxTokens
	}
	if cfg.MaxInputChars > 0 {
		s.MaxInputChars = cfg.MaxInputChars
	}
	if cfg.ShortInputChars > 0 {
		s.ShortInputChars = cfg.ShortInputChars
	}
	return s
}

// Session holds the state for one uploaded document: its text, the metrics
// table, and the append-only analysis history. Sessions share nothing.
//
// Completion calls run without holding the session lock, so accessors stay
// responsive; operations started while a call is in flight fail with
// ErrInvalidState.
type Session struct {
	id         string
	completer  llm.Completer
	extractor  ocr.Extractor
	normalizer *metrics.Normalizer
	style      *prompt.StyleGuide
	settings   Settings
	now        func() time.Time
	closer     io.Closer

	mu      sync.Mutex
	state   State
	text    string
	pages   int
	result  *model.ExtractionResult
	raw     string
	history []model.AnalysisVersion
}

// Option configures a Session.
type Option func(*Session)

// WithExtractor sets the PDF extractor used by LoadDocument.
func WithExtractor(e ocr.Extractor) Option {
	return func(s *Session) { s.extractor = e }
}

// WithNormalizer sets the metric normaliser.
func WithNormalizer(n *metrics.Normalizer) Option {
	return func(s *Session) { s.normalizer = n }
}

// WithStyleGuide sets the writing rules passed to analysis prompts.
func WithStyleGuide(g *prompt.StyleGuide) Option {
	return func(s *Session) { s.style = g }
}

// WithSettings sets the request settings.
func WithSettings(st Settings) Option {
	return func(s *Session) { s.settings = st }
}

// WithClock sets the clock used to timestamp results.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithCloser registers a resource released by Close, typically the
// session's response cache.
func WithCloser(c io.Closer) Option {
	return func(s *Session) { s.closer = c }
}

// New creates an idle Session that completes prompts through c.
func New(c llm.Completer, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		completer:  c,
		normalizer: metrics.New(""),
		style:      prompt.DefaultStyleGuide(),
		settings:   DefaultSettings(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns a copy of the current metrics table, or nil.
func (s *Session) Result() *model.ExtractionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyResult(s.result)
}

// History returns a copy of the analysis history, oldest first.
func (s *Session) History() []model.AnalysisVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AnalysisVersion, len(s.history))
	copy(out, s.history)
	return out
}

// RawResponse returns the completion text behind the current metrics, kept
// for diagnosis when extraction yields nothing.
func (s *Session) RawResponse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// PageCount returns the number of readable pages in the loaded document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages
}

// Close releases the session's resources.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// LoadDocument extracts the text of the PDF at path and loads it.
func (s *Session) LoadDocument(ctx context.Context, path string) error {
	if s.extractor == nil {
		return eris.New("analyst: no PDF extractor configured")
	}
	if st := s.State(); st.Busy() {
		return eris.Wrapf(ErrInvalidState, "analyst: load document while %s", st)
	}

	pages, err := s.extractor.ExtractPages(ctx, path)
	if err != nil {
		return eris.Wrapf(err, "analyst: extract text from %s", path)
	}
	return s.LoadPages(pages)
}

// LoadPages starts a new document from already extracted pages. Any
// previous metrics and history are discarded. Blank pages are ignored; if
// every page is blank the session returns to idle with ErrNoReadableText.
func (s *Session) LoadPages(pages []model.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy() {
		return eris.Wrapf(ErrInvalidState, "analyst: load document while %s", s.state)
	}

	s.reset()
	text := model.JoinPages(pages)
	if text == "" {
		return eris.Wrap(ErrNoReadableText, "analyst: load document")
	}

	readable := 0
	for _, p := range pages {
		if !p.Blank() {
			readable++
		}
	}
	s.text = text
	s.pages = readable
	s.state = StateTextExtracted

	zap.L().Info("analyst: document loaded",
		zap.String("session_id", s.id),
		zap.Int("pages", len(pages)),
		zap.Int("readable_pages", readable),
		zap.Int("chars", len(text)),
	)
	return nil
}

func (s *Session) reset() {
	s.state = StateIdle
	s.text = ""
	s.pages = 0
	s.result = nil
	s.raw = ""
	s.history = nil
}

// ExtractMetrics asks the completion service for the metrics table. When
// nothing can be recovered from the reply, the session moves to
// StateMetricsFailed, keeps an empty placeholder result, and returns an
// *ExtractionEmptyError carrying the raw reply. If metrics were already
// ready, a failed attempt leaves them and the session state untouched.
func (s *Session) ExtractMetrics(ctx context.Context) (*model.ExtractionResult, error) {
	return s.extract(ctx, model.PromptFull)
}

// RetryExtraction repeats extraction with the shorter prompt and a smaller
// text budget.
func (s *Session) RetryExtraction(ctx context.Context) (*model.ExtractionResult, error) {
	return s.extract(ctx, model.PromptShort)
}

func (s *Session) extract(ctx context.Context, variant model.PromptVariant) (*model.ExtractionResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateTextExtracted, StateMetricsReady, StateMetricsFailed:
	default:
		st := s.state
		s.mu.Unlock()
		return nil, eris.Wrapf(ErrInvalidState, "analyst: extract metrics while %s", st)
	}
	text := s.text
	prev := s.state
	s.state = StateMetricsExtracting
	s.mu.Unlock()

	req := llm.Request{
		Model:       s.settings.Model,
		System:      prompt.ExtractionSystem,
		Temperature: s.settings.ExtractTemperature,
		MaxTokens:   s.settings.MaxTokens,
		Phase:       PhaseExtract,
	}
	if variant == model.PromptShort {
		req.Prompt = prompt.ShortExtraction(text, s.settings.ShortInputChars)
		req.Phase = PhaseExtractShort
	} else {
		req.Prompt = prompt.Extraction(text, s.settings.MaxInputChars)
	}

	raw, err := s.completer.Complete(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	// A ready table survives a failed re-extraction.
	keep := prev == StateMetricsReady

	if err != nil {
		if keep {
			s.state = StateMetricsReady
		} else {
			s.state = StateMetricsFailed
			s.result = nil
			s.raw = ""
		}
		return nil, eris.Wrap(err, "analyst: extract metrics")
	}

	result := ParseMetrics(raw, s.normalizer)
	result.Prompt = variant
	result.CreatedAt = s.now()

	zap.L().Info("analyst: metrics extracted",
		zap.String("session_id", s.id),
		zap.String("prompt", string(variant)),
		zap.String("strategy", string(result.Strategy)),
		zap.Int("records", len(result.Records)),
	)

	if result.Empty() {
		if keep {
			zap.L().Warn("analyst: re-extraction found nothing, keeping previous metrics",
				zap.String("session_id", s.id),
			)
			s.state = StateMetricsReady
		} else {
			s.raw = raw
			s.result = result
			s.state = StateMetricsFailed
		}
		return copyResult(result), &ExtractionEmptyError{Raw: raw}
	}
	s.raw = raw
	s.result = result
	s.state = StateMetricsReady
	return copyResult(result), nil
}

// ParseMetrics turns a completion reply into a normalised metrics table:
// structured repair first, then the pattern fallback. When both find
// nothing the result is an empty placeholder; values are never invented.
func ParseMetrics(raw string, n *metrics.Normalizer) *model.ExtractionResult {
	if n == nil {
		n = metrics.New("")
	}

	records, err := parse.RepairAndParse(raw)
	if err == nil {
		if normalized := n.Normalize(records); len(normalized) > 0 {
			return &model.ExtractionResult{Records: normalized, Strategy: model.StrategyStructured, Raw: raw}
		}
	} else {
		zap.L().Debug("analyst: structured parse failed, trying pattern fallback", zap.Error(err))
	}

	if normalized := n.Normalize(parse.ExtractByPattern(raw)); len(normalized) > 0 {
		return &model.ExtractionResult{Records: normalized, Strategy: model.StrategyFallback, Raw: raw}
	}

	zap.L().Warn("analyst: no metrics recovered from completion", zap.Int("raw_chars", len(raw)))
	return &model.ExtractionResult{Records: []model.MetricRecord{}, Strategy: model.StrategyPlaceholder, Raw: raw}
}

// GenerateAnalysis writes the first analysis of the metrics table and
// appends it to the history as version 0.
func (s *Session) GenerateAnalysis(ctx context.Context) (model.AnalysisVersion, error) {
	s.mu.Lock()
	switch s.state {
	case StateMetricsReady, StateAnalysisFailed:
	default:
		st := s.state
		s.mu.Unlock()
		return model.AnalysisVersion{}, eris.Wrapf(ErrInvalidState, "analyst: generate analysis while %s", st)
	}
	table := s.result.Table()
	s.state = StateAnalysisGenerating
	s.mu.Unlock()

	text, err := s.completer.Complete(ctx, llm.Request{
		Model:       s.settings.Model,
		System:      prompt.AnalysisSystem,
		Prompt:      prompt.Analysis(table, s.style),
		Temperature: s.settings.AnalysisTemperature,
		MaxTokens:   s.settings.MaxTokens,
		Phase:       PhaseAnalysis,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateAnalysisFailed
		return model.AnalysisVersion{}, eris.Wrap(err, "analyst: generate analysis")
	}

	v := s.appendVersion(text, "", -1)
	s.state = StateAnalysisReady
	return v, nil
}

// Refine asks for a revision of history[index] following instructions and
// appends the result. Existing versions are never modified. Blank
// instructions are rejected before any call is made.
func (s *Session) Refine(ctx context.Context, index int, instructions string) (model.AnalysisVersion, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return model.AnalysisVersion{}, eris.Wrap(ErrRefinementRejected, "analyst: refine")
	}

	s.mu.Lock()
	switch s.state {
	case StateAnalysisReady, StateRefineFailed:
	default:
		st := s.state
		s.mu.Unlock()
		return model.AnalysisVersion{}, eris.Wrapf(ErrInvalidState, "analyst: refine while %s", st)
	}
	if index < 0 || index >= len(s.history) {
		n := len(s.history)
		s.mu.Unlock()
		return model.AnalysisVersion{}, eris.Wrapf(ErrUnknownVersion, "analyst: refine version %d of %d", index, n)
	}
	base := s.history[index].Text
	s.state = StateRefining
	s.mu.Unlock()

	text, err := s.completer.Complete(ctx, llm.Request{
		Model:       s.settings.Model,
		System:      prompt.AnalysisSystem,
		Prompt:      prompt.Refinement(base, instructions, s.style),
		Temperature: s.settings.AnalysisTemperature,
		MaxTokens:   s.settings.MaxTokens,
		Phase:       PhaseRefine,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateRefineFailed
		return model.AnalysisVersion{}, eris.Wrapf(err, "analyst: refine version %d", index)
	}

	v := s.appendVersion(text, instructions, index)
	s.state = StateAnalysisReady
	return v, nil
}

// RefineLatest refines the most recent version.
func (s *Session) RefineLatest(ctx context.Context, instructions string) (model.AnalysisVersion, error) {
	s.mu.Lock()
	last := len(s.history) - 1
	s.mu.Unlock()
	return s.Refine(ctx, last, instructions)
}

// appendVersion must be called with s.mu held.
func (s *Session) appendVersion(text, instructions string, basedOn int) model.AnalysisVersion {
	v := model.AnalysisVersion{
		Index:        len(s.history),
		Text:         strings.TrimSpace(text),
		Instructions: instructions,
		BasedOn:      basedOn,
		CreatedAt:    s.now(),
	}
	s.history = append(s.history, v)

	fields := []zap.Field{
		zap.String("session_id", s.id),
		zap.Int("version", v.Index),
		zap.Int("based_on", basedOn),
		zap.Int("chars", len(v.Text)),
	}
	if s.style != nil {
		if banned := s.style.ContainsBanned(v.Text); len(banned) > 0 {
			fields = append(fields, zap.Strings("banned_words", banned))
		}
	}
	zap.L().Info("analyst: analysis version added", fields...)
	return v
}

// Process loads the PDF at path, extracts metrics, and writes the first
// analysis.
func (s *Session) Process(ctx context.Context, path string) error {
	if err := s.LoadDocument(ctx, path); err != nil {
		return err
	}
	if _, err := s.ExtractMetrics(ctx); err != nil {
		return err
	}
	_, err := s.GenerateAnalysis(ctx)
	return err
}

func copyResult(r *model.ExtractionResult) *model.ExtractionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Records = make([]model.MetricRecord, len(r.Records))
	for i, rec := range r.Records {
		if rec.Change != nil {
			c := *rec.Change
			rec.Change = &c
		}
		out.Records[i] = rec
	}
	return &out
}
