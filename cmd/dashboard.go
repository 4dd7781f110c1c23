package cmd

import (
	"context"
	"fmt"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/iksnae/hdt-console/internal/controller"
	"github.com/iksnae/hdt-console/internal/scene"
	"github.com/iksnae/hdt-console/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dashboardAssets     string
	dashboardClearCache bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive monitoring dashboard",
	Long: `Open the interactive dashboard: pick a role (1/2/3), start a session (s),
watch the metrics and the avatar react to stress, chat with the twin (tab),
end the session (e) and quit (ctrl+c).

Avatar and environment models are fetched from HDT_ASSET_BASE, or from a
local directory with --assets. Downloaded models are cached under
HDT_HOME/assets for HDT_ASSET_CACHE_TTL; --clear-cache drops the cache
first. Missing models fall back to procedural shapes. Logs go to HDT_LOG_FILE while the dashboard owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		user, err := a.client.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}

		restore, err := internal.OpenLogFile(a.cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer restore()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if dashboardClearCache {
			if err := internal.NewCacheManager(a.cfg.AssetCacheDir(), 0).Clear(); err != nil {
				return err
			}
			internal.LogInfo("Asset cache cleared")
		}

		bridge := tui.NewBridge()
		renderer := newRenderer(a.cfg, bridge)
		defer renderer.Dispose()
		sizes := make(chan scene.Size, 1)
		renderer.AttachResize(sizes)
		renderer.Start(ctx)

		channel, err := a.client.Connect(ctx)
		if err != nil {
			return err
		}
		defer channel.Close()
		go liveDispatcher(bridge.Live).Run(ctx, channel.Events())

		var opts []controller.Option
		if a.cfg.Spool {
			spool, err := internal.OpenSpool(a.cfg.SpoolPath())
			if err != nil {
				internal.LogWarn("Failed uploads will not be spooled: %v", err)
			} else {
				defer func() { _ = spool.Close() }()
				opts = append(opts, controller.WithRecorder(spool))
			}
		}
		ctrl := controller.New(a.client, renderer, bridge, opts...)
		defer func() { _ = ctrl.Close() }()

		model := tui.NewModel(ctx, tui.Config{
			Actions: ctrl,
			User:    user.Username,
			State:   ctrl.State(),
			Resize:  sizes,
		})
		internal.LogInfo("Dashboard started for %s", user.Username)
		return tui.Run(ctx, model, bridge)
	},
}

// liveDispatcher routes event channel traffic to the dashboard's live line
func liveDispatcher(show func(string)) *api.Dispatcher {
	return api.NewDispatcher().
		On(api.EventConnected, func(api.Event) {
			show(successStyle.Render("live"))
		}).
		On(api.EventDisconnected, func(ev api.Event) {
			internal.LogWarn("Live updates interrupted: %v", ev.Err)
			show(warningStyle.Render("offline, reconnecting"))
		}).
		On(api.EventPhysiologicalData, func(ev api.Event) {
			s := ev.Physiological.Sample()
			show(fmt.Sprintf("session %d: stress %.0f (%s), heart %.0f bpm",
				ev.SessionID, s.StressLevel, internal.ClassifyStress(s.StressLevel), s.HeartRate))
		}).
		Otherwise(func(ev api.Event) { show(describeEvent(ev)) })
}

// newRenderer builds the scene renderer with glTF loaders over the
// configured asset source
func newRenderer(cfg *internal.Config, surface scene.Surface) *scene.Renderer {
	var fetcher scene.Fetcher
	if dashboardAssets != "" {
		fetcher = scene.DirFetcher{Root: dashboardAssets}
	} else {
		fetcher = &scene.CachingFetcher{
			Next:  scene.NewHTTPFetcher(cfg.AssetBase, cfg.RequestTimeout),
			Cache: internal.NewCacheManager(cfg.AssetCacheDir(), cfg.AssetCacheTTL),
		}
	}
	loader := scene.NewGLTFLoader(fetcher)
	return scene.NewRenderer(surface,
		scene.WithAvatarLoader(loader),
		scene.WithEnvironmentLoader(loader),
		scene.WithFrameRate(cfg.FrameRate),
	)
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().StringVar(&dashboardAssets, "assets", "", "Load models from this directory instead of HDT_ASSET_BASE")
	dashboardCmd.Flags().BoolVar(&dashboardClearCache, "clear-cache", false, "Drop cached models before starting")
}
