package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// RodEngine drives headless Chrome over the DevTools protocol.
type RodEngine struct {
	bin      string
	headless bool
	quality  int
	log      *slog.Logger
}

// NewRodEngine returns an engine using the Chrome binary at bin, or the one
// rod finds or downloads when bin is empty. headless=false shows the browser
// window. quality is the JPEG quality of captured frames.
func NewRodEngine(bin string, headless bool, quality int, log *slog.Logger) *RodEngine {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &RodEngine{bin: bin, headless: headless, quality: quality, log: log}
}

// Launch implements Engine.Launch.
func (e *RodEngine) Launch(ctx context.Context, vp Viewport, initScripts []string) (Page, error) {
	l := launcher.New().
		Headless(e.headless).
		Set(flags.Flag("disable-web-security")).
		Set(flags.Flag("allow-file-access-from-files")).
		Set(flags.Flag("hide-scrollbars")).
		Set(flags.Flag("mute-audio")).
		Set(flags.Flag("disable-gpu"))
	if e.bin != "" {
		l = l.Bin(e.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	p := &rodPage{browser: browser, launcher: l, quality: e.quality}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	p.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: vp.Scale,
		Mobile:            false,
	}).Call(page); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	for _, js := range initScripts {
		if _, err := page.EvalOnNewDocument(js); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("add init script: %w", err)
		}
	}
	return p, nil
}

type rodPage struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	quality  int
}

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

func (p *rodPage) WaitReady(timeout time.Duration) error {
	err := p.page.Timeout(timeout).Wait(rod.Eval(`() => window.appReady === true`))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrNotReady, timeout)
	}
	if err != nil {
		return fmt.Errorf("wait for app ready: %w", err)
	}
	return nil
}

func (p *rodPage) Eval(js string, args ...any) error {
	if _, err := p.page.Eval(js, args...); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	return nil
}

// Capture uses Page.captureScreenshot directly instead of rod's Screenshot
// helper, which re-measures the layout on every call.
func (p *rodPage) Capture() ([]byte, error) {
	q := p.quality
	res, err := proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &q,
	}.Call(p.page)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return res.Data, nil
}

func (p *rodPage) Close() error {
	var err error
	if p.page != nil {
		_ = p.page.Close()
	}
	if p.browser != nil {
		err = p.browser.Close()
	}
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher.Cleanup()
	}
	return err
}
