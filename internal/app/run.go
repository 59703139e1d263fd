// Package app wires the pieces into a running process: telephony client,
// sync bus with its file fallback, the resident tab, preferences and the
// local HTTP viewer.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/hvermaas/petrel/internal/config"
	"github.com/hvermaas/petrel/internal/prefs"
	"github.com/hvermaas/petrel/internal/surface"
	"github.com/hvermaas/petrel/internal/tab"
	"github.com/hvermaas/petrel/internal/tabsync"
	"github.com/hvermaas/petrel/internal/telephony"
	"github.com/hvermaas/petrel/internal/viewer"
)

type Options struct {
	DataDir string
	CfgPath string
	Cfg     config.Config
}

// Runtime is the assembled process, handed to the desktop shell so it can
// reach the tab and shut everything down.
type Runtime struct {
	Tab     *tab.Tab
	Prefs   *prefs.Store
	Bus     *tabsync.Bus
	Logs    *viewer.LogBuffer
	Client  telephony.Client
	Windows *viewer.WindowRegistry
	BaseURL string

	fallback tabsync.Transport
}

// Run assembles the runtime and serves the viewer until ctx is done.
func Run(ctx context.Context, opt Options) error {
	rt, err := Build(ctx, opt)
	if err != nil {
		return err
	}
	defer rt.Close()

	listenAddr, url, _ := NormalizeLocalViewer(opt.Cfg.Viewer.HTTPAddr)
	log.Printf("APP: viewer on %s", url)

	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Start(listenAddr, viewer.Viewer{
			Tab:     rt.Tab,
			Bus:     rt.Bus,
			Prefs:   rt.Prefs,
			Logs:    rt.Logs,
			Windows: rt.Windows,
			BaseURL: rt.BaseURL,
		})
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("viewer: %w", err)
	}
}

// Build assembles the runtime without serving HTTP; the desktop shell
// drives the viewer itself.
func Build(ctx context.Context, opt Options) (*Runtime, error) {
	logBuf := viewer.NewLogBuffer(800)
	log.SetOutput(io.MultiWriter(os.Stderr, logBuf))

	logBanner(opt.DataDir, opt.CfgPath)

	if err := os.MkdirAll(opt.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	prefStore, err := prefs.Open(opt.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}

	client, err := dialProvider(ctx, opt.Cfg.Telephony)
	if err != nil {
		prefStore.Close()
		return nil, err
	}

	bus := tabsync.NewBus(tabsync.ChannelName)

	var fallback tabsync.Transport
	if opt.Cfg.Sync.FileFallback {
		st, err := tabsync.NewStorageTransport(filepath.Join(opt.DataDir, "sync"))
		if err != nil {
			log.Printf("APP: file sync fallback unavailable: %v", err)
		} else {
			fallback = st
		}
	}

	_, baseURL, _ := NormalizeLocalViewer(opt.Cfg.Viewer.HTTPAddr)
	windows := viewer.NewWindowRegistry()
	opener := &viewer.BrowserOpener{BaseURL: baseURL, Registry: windows}

	resident := tab.New(tab.Options{
		Client:  client,
		Sync:    tabsync.NewChannel(bus.Endpoint(), fallback),
		Prefs:   prefStore,
		Opener:  opener,
		Origin:  baseURL,
		Frames:  surface.NewTickerFrames(),
		OwnsLeg: true,
	})

	return &Runtime{
		Tab:      resident,
		Windows:  windows,
		Prefs:    prefStore,
		Bus:      bus,
		Logs:     logBuf,
		Client:   client,
		BaseURL:  baseURL,
		fallback: fallback,
	}, nil
}

func dialProvider(ctx context.Context, cfg config.Telephony) (telephony.Client, error) {
	switch cfg.Provider {
	case "websocket":
		c, err := telephony.Dial(ctx, cfg.SocketURL)
		if err != nil {
			return nil, fmt.Errorf("telephony: %w", err)
		}
		return c, nil
	default:
		log.Printf("APP: using loopback telephony provider")
		return telephony.NewLoopback(), nil
	}
}

func (rt *Runtime) Close() {
	rt.Tab.Close()
	if err := rt.Client.Close(); err != nil {
		log.Printf("APP: close telephony: %v", err)
	}
	if rt.fallback != nil {
		if err := rt.fallback.Close(); err != nil {
			log.Printf("APP: close sync fallback: %v", err)
		}
	}
	if err := rt.Prefs.Close(); err != nil {
		log.Printf("APP: close prefs: %v", err)
	}
}
