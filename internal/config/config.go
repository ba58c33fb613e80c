// Package config defines the runtime configuration of meshrender.
package config

import (
	"flag"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/meshrender/internal/logging"
)

// Config groups every tunable of a run.
type Config struct {
	Window   WindowConfig
	Assets   AssetConfig
	Renderer RendererConfig
	Log      LogConfig
}

// WindowConfig sizes and names the output window.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
}

// AssetConfig points at the files loaded once at startup. Empty shader
// paths select the shaders embedded in the binary.
type AssetConfig struct {
	Mesh           string
	Material       string
	Texture        string
	VertexShader   string
	FragmentShader string
}

// RendererConfig controls the GPU side.
type RendererConfig struct {
	// Validation enables the Khronos validation layer and the debug messenger.
	Validation bool
	// FramesInFlight is the number of frames the CPU may record ahead of the GPU.
	FramesInFlight int
	// MaxFrames stops the loop after this many presented frames. 0 runs until
	// the window closes.
	MaxFrames int
	// Info prints a device and swapchain summary after initialization.
	Info bool
}

// LogConfig controls diagnostics output.
type LogConfig struct {
	Level         string
	StatsInterval time.Duration
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "meshrender",
			Width:  800,
			Height: 600,
		},
		Assets: AssetConfig{
			Mesh:     "assets/meshes/cube.obj",
			Material: "",
			Texture:  "assets/textures/checker.png",
		},
		Renderer: RendererConfig{
			Validation:     defaultValidation,
			FramesInFlight: 2,
		},
		Log: LogConfig{
			Level:         "info",
			StatsInterval: 5 * time.Second,
		},
	}
}

// RegisterFlags binds every field to a flag on fs, using the current values
// as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Window.Title, "title", c.Window.Title, "window title")
	fs.IntVar(&c.Window.Width, "width", c.Window.Width, "initial window width in pixels")
	fs.IntVar(&c.Window.Height, "height", c.Window.Height, "initial window height in pixels")

	fs.StringVar(&c.Assets.Mesh, "mesh", c.Assets.Mesh, "OBJ mesh to render")
	fs.StringVar(&c.Assets.Material, "material", c.Assets.Material, "optional MTL file for the mesh")
	fs.StringVar(&c.Assets.Texture, "texture", c.Assets.Texture, "texture image (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVar(&c.Assets.VertexShader, "vert", c.Assets.VertexShader, "vertex shader SPIR-V (empty uses the built-in shader)")
	fs.StringVar(&c.Assets.FragmentShader, "frag", c.Assets.FragmentShader, "fragment shader SPIR-V (empty uses the built-in shader)")

	fs.BoolVar(&c.Renderer.Validation, "validation", c.Renderer.Validation, "enable validation layers")
	fs.IntVar(&c.Renderer.FramesInFlight, "frames-in-flight", c.Renderer.FramesInFlight, "frames recorded ahead of the GPU")
	fs.IntVar(&c.Renderer.MaxFrames, "max-frames", c.Renderer.MaxFrames, "stop after this many frames (0 = until closed)")
	fs.BoolVar(&c.Renderer.Info, "info", c.Renderer.Info, "print a device summary after startup")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn, error")
	fs.DurationVar(&c.Log.StatsInterval, "stats-interval", c.Log.StatsInterval, "frame statistics interval (0 disables)")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Assets.Mesh == "" {
		return errors.New("no mesh given")
	}
	if c.Assets.Texture == "" {
		return errors.New("no texture given")
	}
	if c.Renderer.FramesInFlight < 1 {
		return errors.Newf("frames in flight must be at least 1, got %d", c.Renderer.FramesInFlight)
	}
	if c.Renderer.MaxFrames < 0 {
		return errors.Newf("max frames cannot be negative, got %d", c.Renderer.MaxFrames)
	}
	if c.Log.StatsInterval < 0 {
		return errors.Newf("stats interval cannot be negative, got %s", c.Log.StatsInterval)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
