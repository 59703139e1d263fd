package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hvermaas/petrel/internal/util"
)

type Config struct {
	Paths     Paths     `json:"paths"`
	Telephony Telephony `json:"telephony"`
	Viewer    Viewer    `json:"viewer"`
	Sync      Sync      `json:"sync"`
}

type Paths struct {
	// DataDir holds the preference database and the sync key file.
	DataDir string `json:"data_dir"`
}

type Telephony struct {
	// Provider selects the softphone backend: "websocket" or "loopback".
	// Loopback runs without credentials and answers itself; useful for
	// demos and development.
	Provider string `json:"provider"`

	// SocketURL is the provider event socket, e.g. wss://rtc.example.com/events.
	// Required for the websocket provider.
	SocketURL string `json:"socket_url"`
}

type Viewer struct {
	// HTTPAddr is the local listen address. Empty picks the default.
	HTTPAddr string `json:"http_addr"`
}

type Sync struct {
	// FileFallback enables the watched-file transport so browser tabs
	// without a working socket still receive updates, at best effort.
	FileFallback bool `json:"file_fallback"`
}

const DefaultHTTPAddr = "127.0.0.1:8099"

func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "data",
		},
		Telephony: Telephony{
			Provider: "loopback",
		},
		Viewer: Viewer{
			HTTPAddr: DefaultHTTPAddr,
		},
		Sync: Sync{
			FileFallback: true,
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}

	switch c.Telephony.Provider {
	case "loopback":
	case "websocket":
		raw := strings.TrimSpace(c.Telephony.SocketURL)
		if raw == "" {
			return errors.New("telephony.socket_url is required for the websocket provider")
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("telephony.socket_url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return errors.New("telephony.socket_url must use ws:// or wss://")
		}
	default:
		return fmt.Errorf("telephony.provider must be \"websocket\" or \"loopback\", got %q", c.Telephony.Provider)
	}

	if strings.TrimSpace(c.Viewer.HTTPAddr) == "" {
		return errors.New("viewer.http_addr is required")
	}
	return nil
}

// BaseURL is the canonical origin of the viewer, used for the socket
// origin checks and the pop-out window URL.
func (c *Config) BaseURL() string {
	return "http://" + c.Viewer.HTTPAddr
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
