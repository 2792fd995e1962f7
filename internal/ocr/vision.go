package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/sunshineplan/imgconv"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionEngine calls Google Cloud Vision DOCUMENT_TEXT_DETECTION.
type VisionEngine struct {
	annotate annotateFunc
	close    func() error
	logger   *slog.Logger
}

// NewVisionEngine dials the Vision API. An empty credentialsFile uses the
// ambient application-default credentials.
func NewVisionEngine(ctx context.Context, credentialsFile string, logger *slog.Logger) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: vision client: %v", common.ErrRecognitionUnavailable, err)
	}
	e := newVisionEngine(func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}, logger)
	e.close = client.Close
	return e, nil
}

func newVisionEngine(fn annotateFunc, logger *slog.Logger) *VisionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionEngine{annotate: fn, close: func() error { return nil }, logger: logger}
}

func (e *VisionEngine) Name() string { return "vision" }

func (e *VisionEngine) Close() error { return e.close() }

func (e *VisionEngine) Recognize(ctx context.Context, img image.Image, langs []string) (entity.RecognizedText, error) {
	var buf bytes.Buffer
	if err := imgconv.Write(&buf, img, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return entity.RecognizedText{}, fmt.Errorf("encode page: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: buf.Bytes()},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: visionHints(langs)},
		}},
	}
	resp, err := e.annotate(ctx, req)
	if err != nil {
		return entity.RecognizedText{}, classifyGRPC(err)
	}
	if len(resp.GetResponses()) == 0 {
		return entity.RecognizedText{}, nil
	}
	r := resp.GetResponses()[0]
	if st := r.GetError(); st != nil && st.GetCode() != 0 {
		return entity.RecognizedText{}, classifyGRPC(status.Error(codes.Code(st.GetCode()), st.GetMessage()))
	}

	rt := textFromAnnotation(r.GetFullTextAnnotation(), e.Name())
	e.logger.Debug("ocr.vision.ok", "tokens", len(rt.Tokens), "lang", rt.LanguageHint)
	return rt, nil
}

func textFromAnnotation(ann *visionpb.TextAnnotation, engine string) entity.RecognizedText {
	var tb entity.TextBuilder
	lang := ""
	for _, page := range ann.GetPages() {
		if lang == "" {
			if dl := page.GetProperty().GetDetectedLanguages(); len(dl) > 0 {
				lang = dl[0].GetLanguageCode()
			}
		}
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				for _, word := range para.GetWords() {
					var sb strings.Builder
					var brk visionpb.TextAnnotation_DetectedBreak_BreakType
					for _, sym := range word.GetSymbols() {
						sb.WriteString(sym.GetText())
						brk = sym.GetProperty().GetDetectedBreak().GetType()
					}
					tb.Word(sb.String(), float64(word.GetConfidence()))
					if brk == visionpb.TextAnnotation_DetectedBreak_LINE_BREAK || brk == visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE {
						tb.Newline()
					}
				}
			}
			tb.Newline()
			tb.Newline()
		}
	}
	return tb.Build(engine, lang)
}

var visionLangs = map[string]string{"eng": "en", "hin": "hi", "ara": "ar"}

func visionHints(langs []string) []string {
	var out []string
	for _, l := range langs {
		if v, ok := visionLangs[l]; ok {
			out = append(out, v)
		}
	}
	return out
}

func classifyGRPC(err error) error {
	if status.Code(err) == codes.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: vision: %v", common.ErrRecognitionTimeout, err)
	}
	return fmt.Errorf("%w: vision: %v", common.ErrRecognitionUnavailable, err)
}
