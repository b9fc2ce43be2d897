// Package pdf turns a resume into an A4 PDF through a headless browser.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resumebuilder/internal/config"
	"resumebuilder/internal/resume"
)

const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	marginInches   = 20 / 25.4 // 20mm
)

// ErrRenderTimeout is returned when a render exceeds the configured budget.
var ErrRenderTimeout = errors.New("pdf render timed out")

// Renderer prints an HTML document to PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// NewRenderer picks the browser engine named by cfg.Engine.
func NewRenderer(cfg config.PDFConfig) (Renderer, error) {
	switch cfg.Engine {
	case "", "rod":
		return NewRodRenderer(cfg.ChromePath), nil
	case "chromedp":
		return NewChromedpRenderer(cfg.ChromePath), nil
	default:
		return nil, fmt.Errorf("unsupported pdf engine %q", cfg.Engine)
	}
}

// Service renders resumes with a bounded render time.
type Service struct {
	renderer Renderer
	timeout  time.Duration
}

func NewService(renderer Renderer, timeout time.Duration) *Service {
	return &Service{renderer: renderer, timeout: timeout}
}

// Render builds the resume page and prints it.
func (s *Service) Render(ctx context.Context, r resume.Resume) ([]byte, error) {
	html, err := BuildHTML(r)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	data, err := s.renderer.Render(ctx, html)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrRenderTimeout, err)
		}
		return nil, err
	}
	return data, nil
}
