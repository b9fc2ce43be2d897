package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpRenderer prints HTML through chromedp. The document is written to a
// temporary file so the browser loads it like a regular navigation.
type ChromedpRenderer struct {
	execPath string
}

func NewChromedpRenderer(execPath string) *ChromedpRenderer {
	return &ChromedpRenderer{execPath: execPath}
}

func (r *ChromedpRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	cctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "resume-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o600); err != nil {
		return nil, fmt.Errorf("write html: %w", err)
	}

	var pdfBuf []byte
	err = chromedp.Run(cctx,
		enableLifecycleEvents(),
		navigateAndWaitNetworkIdle("file://"+htmlPath),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithMarginTop(marginInches).
				WithMarginBottom(marginInches).
				WithMarginLeft(marginInches).
				WithMarginRight(marginInches).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	return pdfBuf, nil
}

func enableLifecycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	}
}

// navigateAndWaitNetworkIdle blocks until the page reports networkIdle after
// navigating to url.
func navigateAndWaitNetworkIdle(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		idle := make(chan struct{})
		var once sync.Once
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				once.Do(func() { close(idle) })
			}
		})

		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
