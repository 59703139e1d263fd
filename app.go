// app.go
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"path/filepath"
	"sync"
	"time"

	petrel "github.com/hvermaas/petrel/internal/app"
	"github.com/hvermaas/petrel/internal/config"
	"github.com/hvermaas/petrel/internal/util"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// defaultHomeDir holds the config file and data folder when the desktop
// shell runs without an explicit directory.
const defaultHomeDir = "petrel"

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex

	homeDir   string
	cfgPath   string
	started   bool
	provider  string
	viewerURL string
}

func NewApp(homeDir string) *App {
	if homeDir == "" {
		homeDir = defaultHomeDir
	}
	return &App{homeDir: homeDir}
}

func (a *App) startup(ctx context.Context) {
	// Cancellable context for the surface lifecycle
	a.ctx, a.cancel = context.WithCancel(ctx)
}

func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		log.Println("SHUTDOWN: stopping call surface...")
		a.cancel()

		// Give the runtime time to hang up and close the prefs store
		time.Sleep(500 * time.Millisecond)
		log.Println("SHUTDOWN: complete")
	}
}

// -------------------------
// Frontend API
// -------------------------

// Start brings up the call surface runtime and its local viewer. Called
// by the frontend once on load; subsequent calls are no-ops.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}

	cfgPath := filepath.Join(a.homeDir, "petrel.json")
	cfg, _, err := config.Ensure(cfgPath)
	if err != nil {
		return err
	}

	// pick free localhost port so the desktop shell never collides with
	// a headless instance using the configured address
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	cfg.Viewer.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", port)

	dataDir := util.ResolvePath(a.homeDir, cfg.Paths.DataDir)

	a.cfgPath = cfgPath
	a.started = true
	a.provider = cfg.Telephony.Provider
	a.viewerURL = cfg.BaseURL()

	go func() {
		if err := petrel.Run(a.ctx, petrel.Options{
			DataDir: dataDir,
			CfgPath: cfgPath,
			Cfg:     cfg,
		}); err != nil {
			log.Fatal(err)
		}
	}()

	_, _, tcpAddr := petrel.NormalizeLocalViewer(cfg.Viewer.HTTPAddr)
	if err := petrel.WaitTCP(tcpAddr, 30*time.Second); err != nil {
		runtime.EventsEmit(a.ctx, "startup:error", "Viewer did not start in time")
		return fmt.Errorf("viewer did not start")
	}

	return nil
}

func (a *App) GetViewerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.viewerURL
}

// OpenInBrowser opens a URL in the default browser.
func (a *App) OpenInBrowser(url string) {
	runtime.BrowserOpenURL(a.ctx, url)
}

func (a *App) GetStatus() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return map[string]string{
		"started":   fmt.Sprintf("%v", a.started),
		"provider":  a.provider,
		"viewerURL": a.viewerURL,
		"config":    a.cfgPath,
	}
}
