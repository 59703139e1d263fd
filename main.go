// main.go
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hvermaas/petrel/internal/app"
	"github.com/hvermaas/petrel/internal/config"
	"github.com/hvermaas/petrel/internal/util"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed build/appicon.png
var appIcon []byte

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
	homeDir  = flag.String("home", "", "Home directory for config and data (desktop mode)")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Petrel v%s\n", appVersion)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()

	// No arguments - run desktop UI
	if len(args) == 0 {
		runDesktopApp(*homeDir)
		return
	}

	command := args[0]

	switch command {
	case "serve":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: serve command requires directory path")
			fmt.Fprintln(os.Stderr, "Usage: petrel serve <home-directory>")
			os.Exit(1)
		}
		runCLIServe(args[1])

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

func runDesktopApp(homeDir string) {
	app := NewApp(homeDir)

	err := wails.Run(&options.App{
		Title:  "Petrel  ·  call surface",
		Width:  1200,
		Height: 800,

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		Linux: &linux.Options{
			Icon: appIcon,
		},

		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind:       []any{app},
	})
	if err != nil {
		log.Fatal(err)
	}
}

func runCLIServe(homeDirArg string) {
	absDir, err := filepath.Abs(homeDirArg)
	if err != nil {
		log.Fatalf("Invalid home directory: %v", err)
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		log.Fatalf("Cannot create home directory: %v", err)
	}

	cfgPath := filepath.Join(absDir, "petrel.json")
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if created {
		log.Printf("Created default config at %s", cfgPath)
	}

	printBanner(absDir, cfgPath, cfg)

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := app.Run(ctx, app.Options{
		DataDir: util.ResolvePath(absDir, cfg.Paths.DataDir),
		CfgPath: cfgPath,
		Cfg:     cfg,
	}); err != nil {
		log.Fatalf("Call surface failed: %v", err)
	}
}

func showUsage() {
	fmt.Println("Petrel - softphone call surface")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  petrel                    Run desktop application (default)")
	fmt.Println("  petrel serve <directory>  Run the call surface without GUI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve <directory>")
	fmt.Println("        Serve the local viewer from the specified home directory")
	fmt.Println("        A petrel.json config file is created there if missing")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h               Show this help message")
	fmt.Println("  -version         Show version information")
	fmt.Println("  -home <dir>      Home directory for desktop mode (default \"petrel\")")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Run desktop app")
	fmt.Println("  petrel")
	fmt.Println()
	fmt.Println("  # Run headless against a real provider socket")
	fmt.Println("  petrel serve ~/petrel")
}

func printBanner(homeDir, cfgPath string, cfg config.Config) {
	fmt.Println("╔════════════════════════════════════════════════════════╗")
	fmt.Println("║                  Petrel Call Surface                   ║")
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Home Directory: %s\n", homeDir)
	fmt.Printf("Config File:    %s\n", cfgPath)
	fmt.Printf("Provider:       %s\n", cfg.Telephony.Provider)
	if cfg.Telephony.Provider == "websocket" {
		fmt.Printf("Event Socket:   %s\n", cfg.Telephony.SocketURL)
	}
	fmt.Println()

	fmt.Printf("🌐 Viewer:  %s\n", cfg.BaseURL())
	fmt.Println()

	fmt.Println("Starting... (Press Ctrl+C to stop)")
	fmt.Println("────────────────────────────────────────────────────────")
	fmt.Println()
}
