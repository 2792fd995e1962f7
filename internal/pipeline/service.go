package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/conditioner"
	"github.com/joseph-ayodele/idverify/internal/confidence"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/fields"
	"github.com/joseph-ayodele/idverify/internal/llm"
	"github.com/joseph-ayodele/idverify/internal/ocr"
	"github.com/joseph-ayodele/idverify/internal/reconcile"
	"github.com/joseph-ayodele/idverify/internal/repository"
	"github.com/joseph-ayodele/idverify/internal/script"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

// PageConverter turns one upload into decodable image bytes (PDF pages, HEIC).
type PageConverter interface {
	Images(ctx context.Context, p entity.RawPage) ([][]byte, error)
}

// Deps are the collaborators of a Service. Engine is required; everything
// else has a default or is optional.
type Deps struct {
	Engine        ocr.Engine
	Converter     PageConverter
	Extractor     *fields.Extractor
	Detector      *script.Detector
	Scorer        *confidence.Scorer
	Reconciler    *reconcile.Reconciler
	Secondary     llm.FieldExtractor // nil disables the secondary attempt
	Verifier      *verify.Verifier
	Extractions   repository.ExtractionRepository   // nil disables persistence
	Verifications repository.VerificationRepository // nil disables persistence
}

// Service runs extraction and verification. It holds no per-document state
// and is safe for concurrent use.
type Service struct {
	cfg           Config
	engine        ocr.Engine
	converter     PageConverter
	conditioner   *conditioner.Conditioner
	debugCond     *conditioner.Conditioner
	extractor     *fields.Extractor
	detector      script.Detector
	scorer        *confidence.Scorer
	reconciler    *reconcile.Reconciler
	secondary     llm.FieldExtractor
	verifier      *verify.Verifier
	extractions   repository.ExtractionRepository
	verifications repository.VerificationRepository
	logger        *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Service, error) {
	if deps.Engine == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "pipeline needs a recognition engine", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	s := &Service{
		cfg:           cfg,
		engine:        deps.Engine,
		converter:     deps.Converter,
		extractor:     deps.Extractor,
		scorer:        deps.Scorer,
		reconciler:    deps.Reconciler,
		secondary:     deps.Secondary,
		verifier:      deps.Verifier,
		extractions:   deps.Extractions,
		verifications: deps.Verifications,
		logger:        logger,
	}
	if s.converter == nil {
		s.converter = passThrough{}
	}
	if s.extractor == nil {
		s.extractor = fields.NewExtractor(nil, logger)
	}
	if deps.Detector != nil {
		s.detector = *deps.Detector
	} else {
		s.detector = script.NewDetector(script.DefaultMinorityShare)
	}
	if s.scorer == nil {
		s.scorer = confidence.NewScorer(nil)
	}
	if s.reconciler == nil {
		s.reconciler = reconcile.New(reconcile.DefaultThreshold, s.scorer, logger)
	}
	if s.verifier == nil {
		s.verifier = verify.New(common.VerifyConfig{})
	}

	s.conditioner = conditioner.New(cfg.Conditioner, logger)
	dbg := cfg.Conditioner
	dbg.Debug = true
	s.debugCond = conditioner.New(dbg, logger)
	return s, nil
}

type passThrough struct{}

func (passThrough) Images(_ context.Context, p entity.RawPage) ([][]byte, error) {
	return [][]byte{p.Data}, nil
}

type extractOptions struct {
	debug bool
}

type ExtractOption func(*extractOptions)

// WithDebug attaches per-page stage logs and frames to the response.
func WithDebug(on bool) ExtractOption {
	return func(o *extractOptions) { o.debug = o.debug || on }
}

type pageResult struct {
	rt       entity.RecognizedText
	langs    string
	refined  bool
	degraded bool
	stages   []conditioner.StageOutcome
	frames   []conditioner.DebugFrame
}

// Extract runs one document through conditioning, recognition, field
// extraction, scoring and reconciliation. Conditioning problems degrade the
// result; recognition failures fail it with ErrExtractionFailed. A document
// with no recognizable fields is not an error.
func (s *Service) Extract(ctx context.Context, doc entity.RawDocument, opts ...ExtractOption) (ExtractResponse, error) {
	o := extractOptions{debug: s.cfg.Debug}
	for _, fn := range opts {
		fn(&o)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if len(doc.Pages) == 0 {
		return ExtractResponse{}, common.NewAppError("INVALID_INPUT", "document has no pages", common.ErrInvalidInput)
	}

	ctx = common.WithDocumentID(ctx, doc.ID.String())
	log := s.logger.With("document_id", doc.ID.String())
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		log = log.With("request_id", rid)
	}
	start := time.Now()
	log.Info("pipeline.extract.start", "pages", len(doc.Pages), "debug", o.debug)

	images, err := s.decode(ctx, doc.Pages)
	if err != nil {
		log.Error("pipeline.decode.failed", "error", err)
		return ExtractResponse{}, err
	}

	pages, err := s.recognize(ctx, images, o.debug, log)
	if err != nil {
		log.Error("pipeline.recognize.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, common.ErrInvalidInput) {
			return ExtractResponse{}, err
		}
		return ExtractResponse{}, common.NewExtractionFailed(failureReason(err), err)
	}
	rt := combine(pages)

	sc := s.detector.Detect(rt.Text)
	primary := s.extractor.Extract(rt.Text, sc)
	s.scorer.Apply(&primary, rt)
	log.Info("pipeline.primary.done",
		"script", string(sc),
		"fields", len(primary.Fields),
		"document_confidence", primary.DocumentConfidence,
	)

	var warnings []string
	for _, p := range pages {
		if p.degraded {
			warnings = append(warnings, constants.WarnConditioningDegraded)
			break
		}
	}

	var secondary *entity.FieldSet
	attempted := false
	if s.secondary != nil && s.reconciler.NeedsSecondary(primary) && strings.TrimSpace(rt.Text) != "" {
		attempted = true
		lctx, cancel := common.WithTimeout(ctx, s.cfg.LLMTimeout)
		fs, _, err := s.secondary.ExtractFields(lctx, llm.ExtractRequest{Text: ocr.Normalize(rt.Text), Language: sc})
		cancel()
		if err != nil {
			log.Warn("pipeline.secondary.failed", "error", err)
			warnings = append(warnings, constants.WarnSecondaryFailed)
		} else {
			secondary = &fs
		}
	}

	final := s.reconciler.Reconcile(&primary, secondary)
	if final.Empty() {
		warnings = append(warnings, constants.WarnNoFieldsExtracted)
	}

	resp := ExtractResponse{
		DocumentID:         doc.ID,
		Fields:             final.Values(),
		FieldConfidences:   final.Confidences(),
		DocumentConfidence: final.DocumentConfidence,
		LanguageDetected:   string(sc),
		Source:             string(final.Source),
		RawText:            rt.Text,
		Extra:              final.Extra,
		Components:         final.Components,
		Warnings:           warnings,
	}
	if o.debug {
		resp.Debug = debugInfo(rt, pages, primary, attempted)
	}

	if s.extractions != nil {
		rec := entity.ExtractionRecord{
			ID:                 doc.ID,
			Fields:             resp.Fields,
			FieldConfidences:   resp.FieldConfidences,
			DocumentConfidence: resp.DocumentConfidence,
			Language:           resp.LanguageDetected,
			Source:             resp.Source,
			Engine:             rt.Engine,
			Pages:              len(pages),
			Warnings:           warnings,
			CreatedAt:          time.Now().UTC(),
		}
		if err := s.extractions.Save(ctx, rec); err != nil {
			log.Error("pipeline.persist.failed", "error", err)
			resp.Warnings = append(resp.Warnings, constants.WarnNotStored)
		}
	}

	log.Info("pipeline.extract.done",
		"source", resp.Source,
		"fields", len(resp.Fields),
		"document_confidence", resp.DocumentConfidence,
		"warnings", resp.Warnings,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// decode expands every upload into decoded page images, in upload order.
func (s *Service) decode(ctx context.Context, raw []entity.RawPage) ([]image.Image, error) {
	var images []image.Image
	for i, p := range raw {
		datas, err := s.converter.Images(ctx, p)
		if err != nil {
			if errors.Is(err, common.ErrInvalidInput) {
				return nil, err
			}
			return nil, common.NewExtractionFailed("page_conversion", fmt.Errorf("page %d (%s): %w", i+1, p.Filename, err))
		}
		for _, d := range datas {
			img, err := conditioner.Decode(d)
			if err != nil {
				return nil, fmt.Errorf("page %d (%s): %w", i+1, p.Filename, err)
			}
			images = append(images, img)
		}
	}
	return images, nil
}

// recognize conditions and recognizes pages concurrently, bounded by
// PageConcurrency. The first failing page cancels the rest.
func (s *Service) recognize(ctx context.Context, images []image.Image, debug bool, log *slog.Logger) ([]pageResult, error) {
	results := make([]pageResult, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PageConcurrency)
	for i, img := range images {
		g.Go(func() error {
			r, err := s.recognizePage(gctx, img, debug, log.With("page", i+1))
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) recognizePage(ctx context.Context, img image.Image, debug bool, log *slog.Logger) (pageResult, error) {
	cond := s.conditioner
	if debug {
		cond = s.debugCond
	}
	res, err := cond.Condition(ctx, img)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			return pageResult{}, err
		}
		return pageResult{}, common.ClassifyRecognitionError(err)
	}
	out := pageResult{stages: res.Stages, degraded: res.Degraded, frames: res.Debug, langs: s.cfg.probe()}

	octx, cancel := common.WithTimeout(ctx, s.cfg.OCRTimeout)
	defer cancel()

	rt, err := s.engine.Recognize(octx, res.Image, s.cfg.ProbeLangs)
	if err != nil {
		return pageResult{}, common.ClassifyRecognitionError(err)
	}
	out.rt = rt

	if s.cfg.Refine && strings.TrimSpace(rt.Text) != "" {
		want := s.detector.Detect(rt.Text).TesseractLang()
		if want != out.langs {
			refined, err := s.engine.Recognize(octx, res.Image, ocr.SplitLangs(want))
			switch {
			case err != nil:
				log.Warn("pipeline.refine.failed", "languages", want, "error", err)
			case strings.TrimSpace(refined.Text) == "":
				log.Debug("pipeline.refine.empty", "languages", want)
			default:
				out.rt, out.langs, out.refined = refined, want, true
			}
		}
	}
	log.Debug("pipeline.page.recognized",
		"engine", out.rt.Engine,
		"languages", out.langs,
		"refined", out.refined,
		"tokens", len(out.rt.Tokens),
		"degraded", out.degraded,
	)
	return out, nil
}

// combine joins page texts with a blank line between pages. Token offsets
// shift with the text.
func combine(pages []pageResult) entity.RecognizedText {
	var tb entity.TextBuilder
	engine, hint := "", ""
	var confSum float64
	var confN int
	for _, p := range pages {
		tb.Append(p.rt)
		if engine == "" {
			engine = p.rt.Engine
		}
		if hint == "" {
			hint = p.rt.LanguageHint
		}
		if p.rt.MeanConfidence > 0 {
			confSum += p.rt.MeanConfidence
			confN++
		}
	}
	rt := tb.Build(engine, hint)
	if len(rt.Tokens) == 0 && confN > 0 {
		// engine reported page confidence only
		rt.MeanConfidence = confSum / float64(confN)
	}
	return rt
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrRecognitionTimeout):
		return "recognition_timeout"
	case errors.Is(err, common.ErrRecognitionUnavailable):
		return "recognition_unavailable"
	default:
		return "recognition_failed"
	}
}

func debugInfo(rt entity.RecognizedText, pages []pageResult, primary entity.FieldSet, attempted bool) *DebugInfo {
	d := &DebugInfo{
		Engine:             rt.Engine,
		Shares:             script.Count(rt.Text),
		PrimaryConfidence:  primary.DocumentConfidence,
		SecondaryAttempted: attempted,
	}
	for i, p := range pages {
		pd := PageDebug{Index: i + 1, Languages: p.langs, Refined: p.refined, Stages: p.stages}
		for _, f := range p.frames {
			pd.Frames = append(pd.Frames, Frame{Stage: f.Stage, PNG: f.PNG})
		}
		d.Pages = append(d.Pages, pd)
	}
	return d
}

// Verify compares submitted values with an extracted set. Keys are
// canonicalized on both sides so "DOB" and "date_of_birth" meet. The report is
// persisted when a repository is configured; a storage failure is logged and
// does not change the report.
func (s *Service) Verify(ctx context.Context, submitted, extracted map[string]string) entity.VerificationReport {
	return s.verify(ctx, nil, submitted, extracted)
}

// VerifyExtraction verifies against a stored extraction.
func (s *Service) VerifyExtraction(ctx context.Context, id uuid.UUID, submitted map[string]string) (entity.VerificationReport, error) {
	rec, err := s.Extraction(ctx, id)
	if err != nil {
		return entity.VerificationReport{}, err
	}
	return s.verify(ctx, &id, submitted, rec.Fields), nil
}

// Extraction loads a stored extraction summary.
func (s *Service) Extraction(ctx context.Context, id uuid.UUID) (entity.ExtractionRecord, error) {
	if s.extractions == nil {
		return entity.ExtractionRecord{}, common.NewAppError("STORAGE_DISABLED", "extractions are not stored", common.ErrNotFound)
	}
	return s.extractions.Get(ctx, id)
}

func (s *Service) verify(ctx context.Context, extractionID *uuid.UUID, submitted, extracted map[string]string) entity.VerificationReport {
	report := s.verifier.Verify(canonicalKeys(submitted), canonicalKeys(extracted))
	s.logger.Info("pipeline.verify.done",
		"fields", len(report.Matches),
		"mismatches", len(report.Mismatches),
		"overall_score", report.OverallScore,
		"passed", report.Passed,
		"invalid", report.Invalid,
	)
	if s.verifications != nil {
		rec := entity.VerificationRecord{ExtractionID: extractionID, Report: report, CreatedAt: time.Now().UTC()}
		if err := s.verifications.Save(ctx, rec); err != nil {
			s.logger.Error("pipeline.verify.persist_failed", "error", err)
		}
	}
	return report
}

// canonicalKeys drops blank keys. On a collision the canonical spelling wins
// over an alias.
func canonicalKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	exact := make(map[string]bool, len(in))
	for k, v := range in {
		key, ok := constants.Canonicalize(k)
		if key == "" {
			continue
		}
		name := string(key)
		isExact := ok && strings.EqualFold(strings.TrimSpace(k), name)
		if _, seen := out[name]; seen && exact[name] && !isExact {
			continue
		}
		out[name] = v
		exact[name] = exact[name] || isExact
	}
	return out
}
