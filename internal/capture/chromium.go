package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"

	"remindercal/internal/config"
	appLog "remindercal/internal/log"
)

// Default capture parameters. They should match the /calendar layout.
const (
	DefaultWidth      = 800
	DefaultHeight     = 480
	DefaultTimeoutSec = 30
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport and output size in pixels.
	Width  int
	Height int

	Timeout time.Duration

	// Username/Password are sent as HTTP Basic Auth when set.
	Username string
	Password string
}

// OptionsFrom builds capture options from config. An empty capture URL
// points at the local /calendar page on listen.
func OptionsFrom(cfg *config.Config) CaptureOptions {
	opts := CaptureOptions{
		URL:        cfg.Capture.URL,
		OutputPath: cfg.Capture.Output,
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
		Timeout:    cfg.Capture.Timeout,
	}
	if opts.URL == "" {
		opts.URL = "http://" + localAddr(cfg.Listen) + "/calendar"
	}
	if cfg.BasicAuth.Enabled() {
		opts.Username = cfg.BasicAuth.Username
		opts.Password = cfg.BasicAuth.Password
	}
	return opts
}

// localAddr rewrites wildcard listen addresses to loopback.
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// CaptureCalendarPNG drives headless Chromium to opts.URL, waits until the
// page root reports data-ready="true", and writes a PNG cropped to the
// viewport size.
func CaptureCalendarPNG(parentCtx context.Context, opts CaptureOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var shot []byte
	tasks := chromedp.Tasks{}
	if opts.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}),
		)
	}
	tasks = append(tasks,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Allow final paints.
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&shot, 100),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writePNG(shot, opts.OutputPath, opts.Width, opts.Height); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("preview captured", "path", opts.OutputPath, "width", opts.Width, "height", opts.Height)
	return nil
}

// fitViewport crops a full-page screenshot to the top-left w x h area.
func fitViewport(data []byte, w, h int) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img, nil
	}
	return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+min(w, b.Dx()), b.Min.Y+min(h, b.Dy()))), nil
}

// writePNG stores the cropped screenshot atomically so /preview.png never
// serves a partial file.
func writePNG(data []byte, path string, w, h int) error {
	img, err := fitViewport(data, w, h)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
