package compositor

import (
	"context"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"
	"pkt.systems/bezel/core"
	"pkt.systems/bezel/internal/appconfig"
	"pkt.systems/bezel/schema"
	"pkt.systems/pslog"
)

// Compositor runs the native window loop: it polls toolkit input into the
// router, snapshots the active tab's frame out of the registry, and uploads
// it to a GPU texture. Must run on the main OS thread; raylib requires it.
type Compositor struct {
	registry *core.Registry
	router   *core.Router
	cfg      appconfig.WindowConfig
	logger   pslog.Logger

	staging []byte
	rgba    []color.RGBA
	texture rl.Texture2D
	texSize schema.Size
	lastSeq uint64
	lastTab schema.TabHandle
	title   string
	focused bool
}

// New wires a compositor to the registry it renders and the router it feeds.
func New(registry *core.Registry, router *core.Router, cfg appconfig.WindowConfig, logger pslog.Logger) *Compositor {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Compositor{
		registry: registry,
		router:   router,
		cfg:      cfg,
		logger:   logger,
		focused:  true,
	}
}

// Run opens the window and drives the frame loop until the window closes or
// the context is cancelled. Blocking; call from the locked main goroutine.
func (c *Compositor) Run(ctx context.Context) error {
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(c.cfg.Width), int32(c.cfg.Height), c.cfg.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(c.cfg.TargetFPS))

	c.logger.Info("compositor window opened", "width", c.cfg.Width, "height", c.cfg.Height)
	for !rl.WindowShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.handleResize(ctx)
		c.handleFocus(ctx)
		c.pollInput(ctx)
		c.uploadActiveFrame()
		c.updateTitle(ctx)
		c.draw()
	}
	c.logger.Info("compositor window closed")
	return nil
}

func (c *Compositor) handleResize(ctx context.Context) {
	if !rl.IsWindowResized() {
		return
	}
	size := schema.Size{Width: rl.GetScreenWidth(), Height: rl.GetScreenHeight()}
	if size.IsEmpty() {
		return
	}
	if _, err := c.registry.Resize(ctx, schema.ResizeRequest{LogicalSize: size}); err != nil {
		// Keep rendering the old frames; the next resize retries.
		c.logger.Warn("compositor resize failed", "err", err)
	}
}

func (c *Compositor) handleFocus(ctx context.Context) {
	focused := rl.IsWindowFocused()
	if focused == c.focused {
		return
	}
	c.focused = focused
	kind := schema.InputBlur
	if focused {
		kind = schema.InputFocus
	}
	_ = c.router.Dispatch(ctx, schema.InputEvent{Kind: kind})
}

// uploadActiveFrame snapshots the active tab's pixels and refreshes the GPU
// texture. The texture is recreated when the frame geometry or the active
// tab changes, and merely updated when only the content did.
func (c *Compositor) uploadActiveFrame() {
	staging, info, ok := c.registry.CopyActiveFrame(c.staging)
	c.staging = staging
	if !ok {
		c.dropTexture()
		return
	}
	if info.Handle == c.lastTab && info.Seq == c.lastSeq && info.Size == c.texSize {
		return
	}
	if info.Size != c.texSize {
		c.dropTexture()
		img := rl.GenImageColor(info.Size.Width, info.Size.Height, rl.Black)
		c.texture = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
		c.texSize = info.Size
	}
	c.rgba = bgraToRGBA(c.staging, c.rgba)
	rl.UpdateTexture(c.texture, c.rgba)
	c.lastTab = info.Handle
	c.lastSeq = info.Seq
}

func (c *Compositor) dropTexture() {
	if c.texSize.IsEmpty() {
		return
	}
	rl.UnloadTexture(c.texture)
	c.texture = rl.Texture2D{}
	c.texSize = schema.Size{}
	c.lastSeq = 0
	c.lastTab = 0
}

func (c *Compositor) updateTitle(ctx context.Context) {
	handle := c.registry.ActiveHandle()
	if handle == 0 {
		if c.title != c.cfg.Title {
			c.title = c.cfg.Title
			rl.SetWindowTitle(c.cfg.Title)
		}
		return
	}
	resp, err := c.registry.GetTab(ctx, schema.GetTabRequest{Handle: handle})
	if err != nil {
		return
	}
	title := resp.Tab.Title + " - " + c.cfg.Title
	if title != c.title {
		c.title = title
		rl.SetWindowTitle(title)
	}
}

func (c *Compositor) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 32, G: 32, B: 36, A: 255})
	if !c.texSize.IsEmpty() {
		src := rl.NewRectangle(0, 0, float32(c.texSize.Width), float32(c.texSize.Height))
		dst := rl.NewRectangle(0, 0, float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight()))
		rl.DrawTexturePro(c.texture, src, dst, rl.NewVector2(0, 0), 0, rl.White)
	}
	rl.EndDrawing()
}

// bgraToRGBA converts the frame store's BGRA bytes into the color slice
// raylib's texture upload expects, reusing the previous slice when it fits.
func bgraToRGBA(src []byte, dst []color.RGBA) []color.RGBA {
	n := len(src) / 4
	if cap(dst) < n {
		dst = make([]color.RGBA, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		off := i * 4
		dst[i] = color.RGBA{R: src[off+2], G: src[off+1], B: src[off], A: src[off+3]}
	}
	return dst
}
