// Command meshrender draws a spinning textured mesh in a window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/cockroachdb/errors"
	builtin "github.com/vkngwrapper/meshrender/assets/shaders"
	"github.com/vkngwrapper/meshrender/internal/config"
	"github.com/vkngwrapper/meshrender/internal/frame"
	"github.com/vkngwrapper/meshrender/internal/logging"
	"github.com/vkngwrapper/meshrender/internal/mesh"
	"github.com/vkngwrapper/meshrender/internal/render"
	"github.com/vkngwrapper/meshrender/internal/texture"
	"github.com/vkngwrapper/meshrender/internal/window"
)

func init() {
	// SDL and the presentation engine expect calls from the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := config.Default()
	fs := flag.NewFlagSet("meshrender", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.SetLogger(logging.NewTextLogger(os.Stderr, level))
	log := logging.Logger()

	m, err := mesh.LoadOBJ(cfg.Assets.Mesh, cfg.Assets.Material)
	if err != nil {
		return err
	}
	log.Info("loaded mesh", "path", cfg.Assets.Mesh, "vertices", len(m.Vertices), "indices", len(m.Indices))

	img, err := texture.Load(cfg.Assets.Texture)
	if err != nil {
		return err
	}

	var shaders render.ShaderCode
	shaders.Vertex, err = loadShader(cfg.Assets.VertexShader, "vert.spv")
	if err != nil {
		return err
	}
	shaders.Fragment, err = loadShader(cfg.Assets.FragmentShader, "frag.spv")
	if err != nil {
		return err
	}

	win, err := window.Open(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		return err
	}
	defer win.Destroy()

	loader, err := win.Loader()
	if err != nil {
		return err
	}

	dev, err := render.NewDevice(loader, win, render.DeviceOptions{
		ApplicationName: cfg.Window.Title,
		Validation:      cfg.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	defer dev.Destroy()
	log.Info("selected device", "name", dev.DeviceName())

	renderer, err := render.NewRenderer(dev, win, m, img, render.RendererOptions{
		Shaders:        shaders,
		FramesInFlight: cfg.Renderer.FramesInFlight,
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	if cfg.Renderer.Info {
		if err := renderer.Summary(os.Stdout); err != nil {
			return errors.Wrap(err, "print summary")
		}
	}

	sched := frame.NewScheduler(renderer, win, frame.WithStatsInterval(cfg.Log.StatsInterval))
	win.SetResizeHandler(sched)
	defer win.SetResizeHandler(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := sched.Run(ctx, cfg.Renderer.MaxFrames); err != nil {
		return err
	}

	stats := sched.Stats()
	log.Info("finished", "frames", stats.Frames, "recreations", stats.Recreations)
	return nil
}

// loadShader reads SPIR-V from path, or the embedded shader called name
// when no path is given.
func loadShader(path, name string) ([]uint32, error) {
	if path != "" {
		return render.ReadSPIRV(path)
	}

	b, err := builtin.FS.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read built-in shader %s", name)
	}
	words, err := render.ParseSPIRV(b)
	return words, errors.Wrapf(err, "load built-in shader %s", name)
}
