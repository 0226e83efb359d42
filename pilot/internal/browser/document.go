package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// document reads a page DOM through Runtime.evaluate.
type document struct {
	page *rod.Page
}

func (d *document) URL(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: location: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *document) QueryHTML(ctx context.Context, selector string) (string, bool, error) {
	res, err := d.page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerHTML : null;
	}`, selector)
	if err != nil {
		return "", false, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

func (d *document) QueryAllHTML(ctx context.Context, selector string) ([]string, error) {
	res, err := d.page.Context(ctx).Eval(`(sel) =>
		Array.from(document.querySelectorAll(sel), el => el.innerHTML)`, selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query all %s: %w", selector, err)
	}
	var out []string
	for _, v := range res.Value.Arr() {
		out = append(out, v.Str())
	}
	return out, nil
}

func (d *document) Click(ctx context.Context, id string) (bool, error) {
	res, err := d.page.Context(ctx).Eval(`(id) => {
		const el = document.getElementById(id);
		if (!el) return false;
		el.click();
		return true;
	}`, id)
	if err != nil {
		return false, fmt.Errorf("browser: click %s: %w", id, err)
	}
	return res.Value.Bool(), nil
}

func (d *document) Screenshot(ctx context.Context) (string, error) {
	data, err := d.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("browser: page screenshot: %w", err)
	}
	return EncodeDataURL("image/png", data), nil
}
