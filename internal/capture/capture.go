// Package capture answers screenshot requests using an optional Renderer.
package capture

import (
	"context"
	"encoding/base64"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uilink/api/schemas"
)

// Capturer wraps an optional schemas.Renderer. Whether one is present is
// fixed at construction.
type Capturer struct {
	renderer schemas.Renderer
	logger   *zap.Logger
}

// New returns a Capturer. A nil renderer is valid and yields placeholders.
func New(renderer schemas.Renderer, logger *zap.Logger) *Capturer {
	return &Capturer{renderer: renderer, logger: logger.Named("capture")}
}

// Available reports whether a renderer was supplied.
func (c *Capturer) Available() bool {
	return c.renderer != nil
}

// Capture renders the page and returns a screenshot reply for screen. An
// empty screen label becomes schemas.DefaultScreen. Rendering failures
// degrade to the placeholder.
func (c *Capturer) Capture(ctx context.Context, screen string) schemas.ScreenshotReply {
	if screen == "" {
		screen = schemas.DefaultScreen
	}
	reply := schemas.ScreenshotReply{
		Type:   schemas.MsgScreenshot,
		Screen: screen,
		Data:   schemas.ScreenshotPlaceholder,
	}
	if c.renderer == nil {
		c.logger.Debug("No renderer available; sending placeholder.", zap.String("screen", screen))
		return reply
	}

	data, mimeType, err := c.renderer.RenderPage(ctx)
	if err != nil {
		c.logger.Warn("Screenshot failed; sending placeholder.", zap.String("screen", screen), zap.Error(err))
		return reply
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	reply.Data = DataURL(mimeType, data)
	return reply
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
