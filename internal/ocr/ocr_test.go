package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	calls  []call
	stdout string
	err    error
	// effect runs before returning, e.g. to write converter output files
	effect func(args []string)
}

func (s *stubRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, call{name: name, args: args})
	if s.effect != nil {
		s.effect(args)
	}
	if s.err != nil {
		return nil, []byte("boom"), s.err
	}
	return []byte(s.stdout), nil, nil
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t600\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t50\t20\t96.5\tName:\n" +
	"5\t1\t1\t1\t1\t2\t70\t10\t50\t20\t91\tRavi\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t50\t20\t88\tAge:\n" +
	"5\t1\t1\t1\t2\t2\t70\t40\t50\t20\t-1\t \n" +
	"5\t1\t2\t1\t1\t1\t10\t90\t50\t20\t90\t34\n"

func TestParseTSV(t *testing.T) {
	rt := ParseTSV(sampleTSV, "tesseract", "eng")

	assert.Equal(t, "Name: Ravi\nAge:\n\n34", rt.Text)
	require.Len(t, rt.Tokens, 4)
	assert.Equal(t, entity.Token{Text: "Ravi", Start: 6, End: 10, Confidence: 0.91}, rt.Tokens[1])
	assert.Equal(t, "34", rt.Text[rt.Tokens[3].Start:rt.Tokens[3].End])
	assert.InDelta(t, 0.91375, rt.MeanConfidence, 1e-9)
	assert.Equal(t, "tesseract", rt.Engine)
	assert.Equal(t, "eng", rt.LanguageHint)
}

func TestParseTSV_Empty(t *testing.T) {
	rt := ParseTSV("", "tesseract", "eng")
	assert.Empty(t, rt.Text)
	assert.Empty(t, rt.Tokens)
	assert.Zero(t, rt.MeanConfidence)
}

func TestTesseractEngine_Args(t *testing.T) {
	r := &stubRunner{stdout: sampleTSV}
	e := NewTesseractEngine(TesseractConfig{PSM: 6, TessdataDir: "/td"}, r, nil)

	rt, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)), []string{"eng", "hin"})
	require.NoError(t, err)
	assert.Equal(t, "eng+hin", rt.LanguageHint)

	require.Len(t, r.calls, 1)
	c := r.calls[0]
	assert.Equal(t, "tesseract", c.name)
	assert.Equal(t, "stdout", c.args[1])
	assert.Equal(t, []string{"-l", "eng+hin", "--psm", "6", "--tessdata-dir", "/td", "tsv"}, c.args[2:])
	assert.True(t, strings.HasSuffix(c.args[0], "page.png"))
}

func TestTesseractEngine_Errors(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing binary", exec.ErrNotFound, common.ErrRecognitionUnavailable},
		{"deadline", context.DeadlineExceeded, common.ErrRecognitionTimeout},
		{"crash", errors.New("exit status 1"), common.ErrRecognitionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTesseractEngine(TesseractConfig{}, &stubRunner{err: tt.err}, nil)
			_, err := e.Recognize(context.Background(), img, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type fakeEngine struct {
	name string
	rt   entity.RecognizedText
	err  error
	hits int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(context.Context, image.Image, []string) (entity.RecognizedText, error) {
	f.hits++
	return f.rt, f.err
}

func TestChain_FallsBack(t *testing.T) {
	a := &fakeEngine{name: "a", err: common.ErrRecognitionUnavailable}
	b := &fakeEngine{name: "b", rt: entity.RecognizedText{Text: "ok", Engine: "b"}}
	c := &fakeEngine{name: "c"}
	chain := NewChain(nil, a, b, c)

	rt, err := chain.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", rt.Text)
	assert.Equal(t, 1, a.hits)
	assert.Equal(t, 1, b.hits)
	assert.Zero(t, c.hits)
	assert.Equal(t, "a,b,c", chain.Name())
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(nil,
		&fakeEngine{name: "a", err: errors.New("down")},
		&fakeEngine{name: "b", err: context.DeadlineExceeded},
	)
	_, err := chain.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecognitionTimeout)

	_, err = NewChain(nil).Recognize(context.Background(), nil, nil)
	assert.ErrorIs(t, err, common.ErrRecognitionUnavailable)
}

func TestSplitLangs(t *testing.T) {
	assert.Equal(t, []string{"eng", "hin", "ara"}, SplitLangs("eng+ hin+ara+"))
	assert.Nil(t, SplitLangs(""))
}

func TestNormalize(t *testing.T) {
	in := "Name:\tRavi   Kumar\r\n_____\r\n\n\n\nAge: 34  "
	assert.Equal(t, "Name: Ravi Kumar\n\nAge: 34", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}

func TestSniff(t *testing.T) {
	heic := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
	tests := []struct {
		page entity.RawPage
		want Kind
	}{
		{entity.RawPage{Data: []byte("%PDF-1.7 ...")}, KindPDF},
		{entity.RawPage{Data: heic}, KindHEIC},
		{entity.RawPage{Filename: "IMG_1.HEIC", Data: []byte{1, 2}}, KindHEIC},
		{entity.RawPage{MimeType: "application/pdf"}, KindPDF},
		{entity.RawPage{Filename: "card.jpg", Data: []byte{0xff, 0xd8}}, KindImage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sniff(tt.page), tt.page.Filename)
	}
}

func TestConverter_RasterizePDF(t *testing.T) {
	r := &stubRunner{}
	r.effect = func(args []string) {
		prefix := args[len(args)-1]
		for _, n := range []string{"01", "02", "03"} {
			_ = os.WriteFile(prefix+"-"+n+".png", []byte("page"+n), 0o600)
		}
	}
	c := NewConverter(ConvertConfig{DPI: 200, MaxPages: 2}, r, nil)

	pages, err := c.Images(context.Background(), entity.RawPage{Filename: "id.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("page01"), []byte("page02")}, pages)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "pdftoppm", r.calls[0].name)
	assert.Equal(t, []string{"-r", "200", "-png", "-l", "2"}, r.calls[0].args[:5])
}

func TestConverter_RasterizePDF_NoPages(t *testing.T) {
	c := NewConverter(ConvertConfig{}, &stubRunner{}, nil)
	_, err := c.RasterizePDF(context.Background(), []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestConverter_ConvertHEIC(t *testing.T) {
	r := &stubRunner{}
	r.effect = func(args []string) {
		out := args[len(args)-1]
		require.Equal(t, "page.png", filepath.Base(out))
		_ = os.WriteFile(out, []byte("png"), 0o600)
	}
	c := NewConverter(ConvertConfig{HeicConverter: "sips"}, r, nil)

	png, err := c.ConvertHEIC(context.Background(), []byte("heic"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), png)
	assert.Equal(t, "sips", r.calls[0].name)
	assert.Equal(t, []string{"-s", "format", "png"}, r.calls[0].args[:3])

	_, err = NewConverter(ConvertConfig{}, r, nil).ConvertHEIC(context.Background(), []byte("heic"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestConverter_PassThrough(t *testing.T) {
	r := &stubRunner{}
	c := NewConverter(ConvertConfig{}, r, nil)
	pages, err := c.Images(context.Background(), entity.RawPage{Filename: "a.png", Data: []byte{0x89, 'P'}})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x89, 'P'}}, pages)
	assert.Empty(t, r.calls)
}

func TestNewEngine(t *testing.T) {
	chain, closer, err := NewEngine(context.Background(), common.OCRConfig{Engines: []string{"tesseract"}}, &stubRunner{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tesseract", chain.Name())
	assert.NoError(t, closer())

	_, _, err = NewEngine(context.Background(), common.OCRConfig{Engines: []string{"abbyy"}}, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
