package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nao1215/onioncrawl/internal/analyzer"
	"github.com/nao1215/onioncrawl/internal/model"
)

// KeywordStep records which configured keywords occur in the page text.
type KeywordStep struct {
	matcher *analyzer.KeywordMatcher
}

// NewKeywordStep creates a KeywordStep for the given keywords.
func NewKeywordStep(keywords []string) *KeywordStep {
	return &KeywordStep{matcher: analyzer.NewKeywordMatcher(keywords)}
}

// Name returns the step name.
func (s *KeywordStep) Name() string {
	return "keywords"
}

// Do executes the keyword step.
func (s *KeywordStep) Do(_ context.Context, page *Page, result *model.Result) error {
	if len(s.matcher.Keywords()) == 0 {
		return nil
	}
	doc, err := page.Document()
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}
	result.KeywordsFound = s.matcher.Match(doc.Text())
	return nil
}

// MetadataStep records the page title and meta tags.
type MetadataStep struct{}

// NewMetadataStep creates a MetadataStep.
func NewMetadataStep() *MetadataStep {
	return &MetadataStep{}
}

// Name returns the step name.
func (s *MetadataStep) Name() string {
	return "metadata"
}

// Do executes the metadata step.
func (s *MetadataStep) Do(_ context.Context, page *Page, result *model.Result) error {
	doc, err := page.Document()
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}
	result.Metadata = doc.Metadata()
	return nil
}

// DenyChecker reports whether a URL's host is on a denylist.
type DenyChecker interface {
	IsDenied(rawURL string) (bool, error)
}

// DenylistStep marks pages whose host is denylisted. When the denylist
// cannot be read the page stays not blacklisted.
type DenylistStep struct {
	checker DenyChecker
}

// NewDenylistStep creates a DenylistStep backed by checker.
func NewDenylistStep(checker DenyChecker) *DenylistStep {
	return &DenylistStep{checker: checker}
}

// Name returns the step name.
func (s *DenylistStep) Name() string {
	return "denylist"
}

// Do executes the denylist step.
func (s *DenylistStep) Do(_ context.Context, page *Page, result *model.Result) error {
	denied, err := s.checker.IsDenied(page.URL)
	if err != nil {
		return err
	}
	result.Blacklisted = denied
	return nil
}

// ScreenshotCapturer captures a page into an image file.
type ScreenshotCapturer interface {
	CaptureScreenshot(ctx context.Context, pageURL, path string) bool
}

// ScreenshotStep captures a screenshot into a directory. The capturer logs
// its own failures; the Result then keeps an empty screenshot path.
type ScreenshotStep struct {
	capturer ScreenshotCapturer
	dir      string
}

// NewScreenshotStep creates a ScreenshotStep writing into dir.
func NewScreenshotStep(capturer ScreenshotCapturer, dir string) *ScreenshotStep {
	return &ScreenshotStep{capturer: capturer, dir: dir}
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string {
	return "screenshot"
}

// Do executes the screenshot step.
func (s *ScreenshotStep) Do(ctx context.Context, page *Page, result *model.Result) error {
	path := ScreenshotPath(s.dir, page.URL)
	if s.capturer.CaptureScreenshot(ctx, page.URL, path) {
		result.ScreenshotPath = path
	}
	return nil
}

// ScreenshotPath returns the PNG file in dir for pageURL. The scheme is
// dropped and every character outside [A-Za-z0-9._-], slashes included,
// becomes an underscore.
func ScreenshotPath(dir, pageURL string) string {
	name := pageURL
	if _, rest, ok := strings.Cut(name, "://"); ok {
		name = rest
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "page"
	}
	return filepath.Join(dir, name+".png")
}
