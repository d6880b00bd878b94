package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
)

const (
	// epubExpansion caps the inflated size of an EPUB at this multiple of
	// the upload limit.
	epubExpansion     = 4
	defaultEPUBBudget = 256 << 20
)

// EPUBExtractor reads the chapters of an EPUB in spine order.
type EPUBExtractor struct {
	budget int64
	logger *zap.Logger
}

// NewEPUBExtractor bounds the decompressed size by maxBytes times
// epubExpansion, or by defaultEPUBBudget when maxBytes is not positive.
func NewEPUBExtractor(maxBytes int64, logger *zap.Logger) *EPUBExtractor {
	budget := int64(defaultEPUBBudget)
	if maxBytes > 0 {
		budget = maxBytes * epubExpansion
	}
	return &EPUBExtractor{budget: budget, logger: logger}
}

func (e *EPUBExtractor) ExtractText(ctx context.Context, data []byte) (*ExtractionResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	inflate := &inflateBudget{remaining: e.budget}

	chapters, err := spineOrder(files, inflate)
	if errors.Is(err, ErrTooLarge) {
		return nil, err
	}
	if err != nil {
		e.logger.Debug("epub spine unreadable, using archive order", zap.Error(err))
		chapters = markupFiles(files)
	}

	var parts []string
	for _, name := range chapters {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		raw, err := inflate.read(files[name])
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		if err != nil {
			e.logger.Warn("failed to read epub chapter", zap.String("chapter", name), zap.Error(err))
			continue
		}
		text, err := BodyText(raw)
		if err != nil || text == "" {
			continue
		}
		parts = append(parts, text)
	}

	return &ExtractionResult{
		Text:  strings.Join(parts, "\n\n"),
		Kind:  KindEPUB,
		Pages: len(parts),
	}, nil
}

// spineOrder follows META-INF/container.xml to the package document and
// returns the chapter paths listed in its spine.
func spineOrder(files map[string]*zip.File, inflate *inflateBudget) ([]string, error) {
	container, err := parseZipXML(files["META-INF/container.xml"], inflate)
	if err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	rootfile := xmlquery.FindOne(container, "//*[local-name()='rootfile']")
	if rootfile == nil || rootfile.SelectAttr("full-path") == "" {
		return nil, fmt.Errorf("container has no rootfile")
	}
	opfPath := rootfile.SelectAttr("full-path")

	opf, err := parseZipXML(files[opfPath], inflate)
	if err != nil {
		return nil, fmt.Errorf("package document: %w", err)
	}

	manifest := make(map[string]string)
	for _, item := range xmlquery.Find(opf, "//*[local-name()='manifest']/*[local-name()='item']") {
		manifest[item.SelectAttr("id")] = item.SelectAttr("href")
	}

	base := path.Dir(opfPath)
	var chapters []string
	for _, ref := range xmlquery.Find(opf, "//*[local-name()='spine']/*[local-name()='itemref']") {
		href, ok := manifest[ref.SelectAttr("idref")]
		if !ok {
			continue
		}
		name := path.Clean(path.Join(base, href))
		if _, ok := files[name]; ok {
			chapters = append(chapters, name)
		}
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("empty spine")
	}
	return chapters, nil
}

func markupFiles(files map[string]*zip.File) []string {
	var names []string
	for name := range files {
		switch strings.ToLower(path.Ext(name)) {
		case ".xhtml", ".html", ".htm":
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseZipXML(f *zip.File, inflate *inflateBudget) (*xmlquery.Node, error) {
	raw, err := inflate.read(f)
	if err != nil {
		return nil, err
	}
	return xmlquery.Parse(bytes.NewReader(raw))
}

// inflateBudget is the number of decompressed bytes an archive may still
// produce.
type inflateBudget struct {
	remaining int64
}

func (b *inflateBudget) read(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("missing file")
	}
	if f.UncompressedSize64 > uint64(b.remaining) {
		return nil, fmt.Errorf("%w: %s inflates to %d bytes", ErrTooLarge, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, b.remaining+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > b.remaining {
		return nil, fmt.Errorf("%w: %s inflates past the archive limit", ErrTooLarge, f.Name)
	}
	b.remaining -= int64(len(raw))
	return raw, nil
}
