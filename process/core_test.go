package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOCR struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *fakeOCR) ImageText(ctx context.Context, data []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *fakeOCR) PDFText(ctx context.Context, data []byte) (string, int, error) {
	f.calls++
	return f.text, f.pages, f.err
}

func TestCore_PlainText(t *testing.T) {
	core := NewCore(nil, 1024, zap.NewNop())

	res, err := core.Extract(context.Background(), "notes/Draft.TXT", strings.NewReader("\xef\xbb\xbf  Hello\r\nworld  "))
	require.NoError(t, err)

	assert.Equal(t, "Hello\nworld", res.Text)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "Draft.TXT", res.FileName)
}

func TestCore_HTML(t *testing.T) {
	core := NewCore(nil, 0, zap.NewNop())
	page := `<html><head><title>t</title><script>var x = 1;</script></head>
<body><p>Generative models write essays.</p></body></html>`

	res, err := core.Extract(context.Background(), "page.html", strings.NewReader(page))
	require.NoError(t, err)

	assert.Contains(t, res.Text, "Generative models write essays.")
	assert.NotContains(t, res.Text, "var x")
	assert.Equal(t, KindHTML, res.Kind)
}

func TestCore_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		body     string
		maxBytes int64
		wantErr  error
	}{
		{"unsupported", "slides.pptx", "x", 0, ErrUnsupportedFile},
		{"image without ocr", "scan.png", "x", 0, ErrUnsupportedFile},
		{"too large", "big.txt", strings.Repeat("a", 11), 10, ErrTooLarge},
		{"blank", "empty.md", " \n\t ", 0, ErrNoText},
		{"pdf without ocr", "scan.pdf", "not a pdf", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := NewCore(nil, tt.maxBytes, zap.NewNop())
			_, err := core.Extract(context.Background(), tt.file, strings.NewReader(tt.body))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCore_ImageUsesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "  text from a screenshot "}
	core := NewCore(ocr, 0, zap.NewNop())

	res, err := core.Extract(context.Background(), "shot.JPG", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)

	assert.Equal(t, "text from a screenshot", res.Text)
	assert.Equal(t, KindImage, res.Kind)
	assert.True(t, res.OCR)
	assert.Equal(t, 1, ocr.calls)
}

func TestCore_PDFFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "scanned page", pages: 2}
	core := NewCore(ocr, 0, zap.NewNop())

	res, err := core.Extract(context.Background(), "scan.pdf", strings.NewReader("not a real pdf"))
	require.NoError(t, err)

	assert.Equal(t, "scanned page", res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.True(t, res.OCR)
}

func TestCore_OCRFailure(t *testing.T) {
	core := NewCore(&fakeOCR{err: errors.New("tesseract missing")}, 0, zap.NewNop())

	_, err := core.Extract(context.Background(), "shot.png", strings.NewReader("png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract missing")
}

func TestBodyText(t *testing.T) {
	text, err := BodyText([]byte(`<body><nav>Menu</nav><div>First</div>
	<div>  Second   line </div><style>p{}</style></body>`))
	require.NoError(t, err)
	assert.Equal(t, "First\nSecond line", text)
}

func TestCore_UnsupportedListsExtensions(t *testing.T) {
	core := NewCore(nil, 0, zap.NewNop())

	_, err := core.Extract(context.Background(), "slides.pptx", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Contains(t, err.Error(), ".epub, .htm, .html, .markdown, .md, .pdf, .text, .txt")
	assert.NotContains(t, core.Supported(), ".png")
}

func TestHTMLExtractor_MainContent(t *testing.T) {
	paragraph := "<p>Community gardens turn vacant city lots into shared plots where neighbours grow vegetables, herbs and flowers together through the season.</p>"
	page := `<html><head><title>Gardens</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article><h1>Why community gardens matter</h1>` + strings.Repeat(paragraph, 6) + `</article>
<footer>Copyright 2024</footer></body></html>`

	text := NewHTMLExtractor(zap.NewNop()).mainContent([]byte(page))
	assert.Contains(t, text, "Community gardens turn vacant city lots")
	assert.NotContains(t, text, "Copyright 2024")
}
