package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/conditioner"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/llm"
	"github.com/joseph-ayodele/idverify/internal/repository"
)

const labeled = "Name: Ravi Kumar\nAge: 34\nGender: Male"

type stubEngine struct {
	mu    sync.Mutex
	calls [][]string
	reply func(langs []string) (entity.RecognizedText, error)
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Recognize(_ context.Context, _ image.Image, langs []string) (entity.RecognizedText, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), langs...))
	e.mu.Unlock()
	return e.reply(langs)
}

func textEngine(text string, conf float64) *stubEngine {
	return &stubEngine{reply: func([]string) (entity.RecognizedText, error) {
		return entity.RecognizedText{Text: text, Engine: "stub", MeanConfidence: conf}, nil
	}}
}

type stubSecondary struct {
	calls int
	req   llm.ExtractRequest
	fs    entity.FieldSet
	err   error
}

func (s *stubSecondary) ExtractFields(_ context.Context, req llm.ExtractRequest) (entity.FieldSet, []byte, error) {
	s.calls++
	s.req = req
	return s.fs, nil, s.err
}

func pagePNG(t *testing.T) entity.RawPage {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for x := 5; x < 35; x++ {
		img.SetGray(x, 15, color.Gray{Y: 0})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return entity.RawPage{Filename: "front.png", MimeType: "image/png", Data: buf.Bytes()}
}

func testConfig() Config {
	return Config{Conditioner: conditioner.Config{Skip: conditioner.StageNames()}}
}

func newService(t *testing.T, cfg Config, deps Deps) *Service {
	t.Helper()
	svc, err := New(cfg, deps, nil)
	require.NoError(t, err)
	return svc
}

func withStore(t *testing.T, deps Deps) Deps {
	t.Helper()
	store, err := repository.Open(context.Background(), repository.Config{DSN: "sqlite::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	deps.Extractions = repository.NewExtractionRepository(store)
	deps.Verifications = repository.NewVerificationRepository(store)
	return deps
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(Config{}, Deps{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtract_HighConfidencePrimary(t *testing.T) {
	sec := &stubSecondary{}
	svc := newService(t, testConfig(), Deps{Engine: textEngine(labeled, 0.95), Secondary: sec})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"name": "Ravi Kumar", "age": "34", "gender": "Male"}, resp.Fields)
	assert.Equal(t, "pattern", resp.Source)
	assert.Equal(t, "en", resp.LanguageDetected)
	assert.InDelta(t, 0.95, resp.DocumentConfidence, 1e-9)
	assert.Equal(t, labeled, resp.RawText)
	assert.Empty(t, resp.Warnings)
	assert.Nil(t, resp.Debug)
	assert.Zero(t, sec.calls)
	require.NotNil(t, resp.Components)
	assert.Equal(t, "Ravi", resp.Components.First)
}

func TestExtract_LowConfidenceUsesSecondary(t *testing.T) {
	fs := entity.NewFieldSet(constants.ScriptEnglish, constants.SourceLLM)
	fs.Set(constants.FieldName, entity.Field{Value: "Ravi Kumar", Confidence: 0.8, Class: constants.MatchModel})
	fs.DocumentConfidence = 0.8
	sec := &stubSecondary{fs: fs}
	svc := newService(t, testConfig(), Deps{Engine: textEngine(labeled, 0.5), Secondary: sec})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)

	assert.Equal(t, 1, sec.calls)
	assert.Equal(t, constants.ScriptEnglish, sec.req.Language)
	assert.Contains(t, sec.req.Text, "Ravi Kumar")
	assert.Equal(t, "llm", resp.Source)
	assert.Equal(t, map[string]string{"name": "Ravi Kumar"}, resp.Fields)
}

func TestExtract_SecondaryFailureKeepsPrimary(t *testing.T) {
	sec := &stubSecondary{err: errors.New("model down")}
	svc := newService(t, testConfig(), Deps{Engine: textEngine(labeled, 0.5), Secondary: sec})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)

	assert.Equal(t, "pattern", resp.Source)
	assert.Equal(t, "Ravi Kumar", resp.Fields["name"])
	assert.Contains(t, resp.Warnings, constants.WarnSecondaryFailed)
}

func TestExtract_NoFields(t *testing.T) {
	sec := &stubSecondary{}
	svc := newService(t, testConfig(), Deps{Engine: textEngine("", 0), Secondary: sec})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)

	assert.Empty(t, resp.Fields)
	assert.Zero(t, resp.DocumentConfidence)
	assert.Contains(t, resp.Warnings, constants.WarnNoFieldsExtracted)
	assert.Zero(t, sec.calls, "blank text never reaches the secondary extractor")
}

func TestExtract_RecognitionFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"unavailable", errors.New("tesseract: not found"), common.ErrRecognitionUnavailable},
		{"timeout", context.DeadlineExceeded, common.ErrRecognitionTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &stubEngine{reply: func([]string) (entity.RecognizedText, error) {
				return entity.RecognizedText{}, tt.err
			}}
			svc := newService(t, testConfig(), Deps{Engine: eng})

			_, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrExtractionFailed)
			assert.ErrorIs(t, err, tt.target)

			var fe *common.ExtractionFailedError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "recognition_"+tt.name, fe.Reason)
		})
	}
}

func TestExtract_InvalidInput(t *testing.T) {
	svc := newService(t, testConfig(), Deps{Engine: textEngine(labeled, 0.9)})

	_, err := svc.Extract(context.Background(), entity.RawDocument{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	junk := entity.RawPage{Filename: "x.png", Data: []byte("not an image")}
	_, err = svc.Extract(context.Background(), entity.NewRawDocument(junk))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.NotErrorIs(t, err, common.ErrExtractionFailed)
}

func TestExtract_RefinesWithDetectedScript(t *testing.T) {
	hindi := "नाम: रवि कुमार"
	eng := textEngine(hindi, 0.9)
	cfg := testConfig()
	cfg.Refine = true
	svc := newService(t, cfg, Deps{Engine: eng})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)), WithDebug(true))
	require.NoError(t, err)

	require.Len(t, eng.calls, 2)
	assert.Equal(t, []string{"eng", "hin", "ara"}, eng.calls[0])
	assert.Equal(t, []string{"hin", "eng"}, eng.calls[1])
	assert.Equal(t, "hi", resp.LanguageDetected)

	require.NotNil(t, resp.Debug)
	require.Len(t, resp.Debug.Pages, 1)
	assert.True(t, resp.Debug.Pages[0].Refined)
	assert.Equal(t, "hin+eng", resp.Debug.Pages[0].Languages)
	assert.Equal(t, "stub", resp.Debug.Engine)
}

func TestExtract_RefineFailureKeepsProbe(t *testing.T) {
	eng := &stubEngine{}
	eng.reply = func(langs []string) (entity.RecognizedText, error) {
		if len(langs) == 1 {
			return entity.RecognizedText{}, errors.New("eng.traineddata missing")
		}
		return entity.RecognizedText{Text: labeled, Engine: "stub", MeanConfidence: 0.95}, nil
	}
	cfg := testConfig()
	cfg.Refine = true
	svc := newService(t, cfg, Deps{Engine: eng})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)
	assert.Len(t, eng.calls, 2)
	assert.Equal(t, "Ravi Kumar", resp.Fields["name"])
}

func TestExtract_MultiplePagesKeepOrder(t *testing.T) {
	eng := &stubEngine{}
	var n int
	var mu sync.Mutex
	eng.reply = func([]string) (entity.RecognizedText, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return entity.RecognizedText{Text: "Name: Ravi Kumar", Engine: "stub", MeanConfidence: 0.9}, nil
		}
		return entity.RecognizedText{Text: "Age: 34", Engine: "stub", MeanConfidence: 0.9}, nil
	}
	cfg := testConfig()
	cfg.PageConcurrency = 1
	svc := newService(t, cfg, Deps{Engine: eng})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t), pagePNG(t)))
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", resp.Fields["name"])
	assert.Equal(t, "34", resp.Fields["age"])
	assert.True(t, strings.Index(resp.RawText, "Ravi") < strings.Index(resp.RawText, "Age"))
}

func TestExtract_DebugFrames(t *testing.T) {
	svc := newService(t, Config{}, Deps{Engine: textEngine(labeled, 0.95)})

	resp, err := svc.Extract(context.Background(), entity.NewRawDocument(pagePNG(t)), WithDebug(true))
	require.NoError(t, err)
	require.NotNil(t, resp.Debug)
	require.Len(t, resp.Debug.Pages, 1)
	assert.NotEmpty(t, resp.Debug.Pages[0].Stages)
	assert.NotEmpty(t, resp.Debug.Pages[0].Frames)
	assert.Positive(t, resp.Debug.Shares.Latin)
	assert.InDelta(t, 0.95, resp.Debug.PrimaryConfidence, 1e-9)
}

func TestExtract_PersistsAndVerifies(t *testing.T) {
	svc := newService(t, testConfig(), withStore(t, Deps{Engine: textEngine(labeled, 0.95)}))
	ctx := context.Background()

	resp, err := svc.Extract(ctx, entity.NewRawDocument(pagePNG(t)))
	require.NoError(t, err)
	assert.NotContains(t, resp.Warnings, constants.WarnNotStored)

	rec, err := svc.Extraction(ctx, resp.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, resp.Fields, rec.Fields)
	assert.Equal(t, "stub", rec.Engine)
	assert.Equal(t, 1, rec.Pages)

	report, err := svc.VerifyExtraction(ctx, resp.DocumentID, map[string]string{
		"Full Name": "ravi kumar",
		"age":       "34",
		"gender":    "male",
	})
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.InDelta(t, 1.0, report.Matches["name"], 1e-9)
	assert.Empty(t, report.Mismatches)

	_, err = svc.VerifyExtraction(ctx, uuid.New(), map[string]string{"name": "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestExtraction_WithoutStore(t *testing.T) {
	svc := newService(t, testConfig(), Deps{Engine: textEngine(labeled, 0.95)})
	_, err := svc.Extraction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVerify_CanonicalizesKeys(t *testing.T) {
	svc := newService(t, testConfig(), Deps{Engine: textEngine("", 0)})

	report := svc.Verify(context.Background(),
		map[string]string{"DOB": "01/02/1990", "Mobile": "9123456789"},
		map[string]string{"date_of_birth": "01/02/1990", "phone": "9123456789"},
	)
	assert.True(t, report.Passed)
	assert.Len(t, report.Matches, 2)
	assert.Contains(t, report.Matches, "date_of_birth")
	assert.Contains(t, report.Matches, "phone")
}

func TestVerify_EmptyIsInvalid(t *testing.T) {
	svc := newService(t, testConfig(), Deps{Engine: textEngine("", 0)})
	report := svc.Verify(context.Background(), nil, map[string]string{})
	assert.True(t, report.Invalid)
	assert.False(t, report.Passed)
}

func TestCanonicalKeys_ExactSpellingWins(t *testing.T) {
	got := canonicalKeys(map[string]string{"dob": "alias", "date_of_birth": "exact", " ": "blank"})
	assert.Equal(t, map[string]string{"date_of_birth": "exact"}, got)
}
