package pdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const networkIdleWindow = 500 * time.Millisecond

// RodRenderer prints HTML with a Chromium controlled through go-rod. Each call
// launches its own browser.
type RodRenderer struct {
	bin string
}

// NewRodRenderer uses bin when set, otherwise the first Chromium found on PATH.
func NewRodRenderer(bin string) *RodRenderer {
	return &RodRenderer{bin: bin}
}

func (r *RodRenderer) Render(ctx context.Context, html string) (_ []byte, err error) {
	launch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	if r.bin != "" {
		launch = launch.Bin(r.bin)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(browserURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	waitIdle := page.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	waitIdle()

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      float64Ptr(a4WidthInches),
		PaperHeight:     float64Ptr(a4HeightInches),
		MarginTop:       float64Ptr(marginInches),
		MarginBottom:    float64Ptr(marginInches),
		MarginLeft:      float64Ptr(marginInches),
		MarginRight:     float64Ptr(marginInches),
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
