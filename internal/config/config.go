// Package config loads nitrousd's TOML configuration, resolving in
// flag > environment > XDG-default order.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every policy knob named or implied by the component design
// (overlord relay-picker/posting/minion timers) plus identity and storage
// paths.
type Config struct {
	Relays         []string `toml:"relays"`
	PrivateKeyFile string   `toml:"private_key_file"`
	DataDir        string   `toml:"data_dir"`
	Offline        bool     `toml:"offline"`

	Profile ProfileConfig `toml:"profile"`

	MaxRelays                    int  `toml:"max_relays"`
	NumRelaysPerPerson           int  `toml:"num_relays_per_person"`
	MaxPubkeysPerRelay           int  `toml:"max_pubkeys_per_relay"`
	RelayConnectionRequiresApprovalFlag bool `toml:"relay_connection_requires_approval"`
	UndoSendSeconds               int `toml:"undo_send_seconds"`
	FutureAllowanceSecs           int `toml:"future_allowance_secs"`
	WebsocketPingFrequencySec     int `toml:"websocket_ping_frequency_sec"`
	MaxMessageSize                int `toml:"max_message_size"`
	MaxFrameSize                  int `toml:"max_frame_size"`
	FeedRecomputeIntervalMs       int `toml:"feed_recompute_interval_ms"`
	PersonFeedChunkSize           int `toml:"person_feed_chunk_size"`
	PowTarget                     int `toml:"pow_target"`
	SpamFilterEnabled             bool `toml:"spam_filter_enabled"`
	MinionIdleTimeoutSec          int  `toml:"minion_idle_timeout_sec"`
	TaskTickMillis                int  `toml:"task_tick_millis"`
	OverlordTickMillis            int  `toml:"overlord_tick_millis"`
	ShutdownJoinTimeoutSec        int  `toml:"shutdown_join_timeout_sec"`
	WebsocketConnectTimeoutSec    int  `toml:"websocket_connect_timeout_sec"`
	Nip11FetchTimeoutSec          int  `toml:"nip11_fetch_timeout_sec"`
	SetUserAgent                  bool `toml:"set_user_agent"`
}

// ProfileConfig mirrors the user's own kind-0 metadata fields.
type ProfileConfig struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	About       string `toml:"about"`
	Picture     string `toml:"picture"`
}

func defaultConfig() Config {
	return Config{
		Relays: []string{
			"wss://relay.damus.io",
			"wss://relay.nostr.band",
			"wss://nos.lol",
		},
		MaxRelays:                    4,
		NumRelaysPerPerson:           2,
		MaxPubkeysPerRelay:           50,
		RelayConnectionRequiresApprovalFlag: false,
		UndoSendSeconds:              0,
		FutureAllowanceSecs:          60 * 15,
		WebsocketPingFrequencySec:    55,
		MaxMessageSize:               512 * 1024,
		MaxFrameSize:                 512 * 1024,
		FeedRecomputeIntervalMs:      10_000,
		PersonFeedChunkSize:          100,
		PowTarget:                    0,
		SpamFilterEnabled:            false,
		MinionIdleTimeoutSec:         10,
		TaskTickMillis:               1500,
		OverlordTickMillis:           500,
		ShutdownJoinTimeoutSec:       10,
		WebsocketConnectTimeoutSec:   15,
		Nip11FetchTimeoutSec:         15,
		SetUserAgent:                 true,
	}
}

// Path resolves the config file location: explicit flag, then
// NITROUSD_CONFIG, then ~/.config/nitrousd/config.toml.
func Path(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("NITROUSD_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "nitrousd", "config.toml")
}

// Load reads and parses the config file, filling in defaults for anything
// unset or out of range. A missing file is not an error: defaults are
// returned as-is.
func Load(flagPath string) (Config, error) {
	cfg := defaultConfig()

	path := Path(flagPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.fillDataDir(path)
			return cfg, nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	if len(cfg.Relays) == 0 {
		cfg.Relays = defaultConfig().Relays
	}
	if cfg.MaxRelays <= 0 {
		cfg.MaxRelays = defaultConfig().MaxRelays
	}
	if cfg.NumRelaysPerPerson <= 0 {
		cfg.NumRelaysPerPerson = defaultConfig().NumRelaysPerPerson
	}
	if cfg.MaxPubkeysPerRelay <= 0 {
		cfg.MaxPubkeysPerRelay = defaultConfig().MaxPubkeysPerRelay
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultConfig().MaxMessageSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultConfig().MaxFrameSize
	}
	if cfg.WebsocketPingFrequencySec <= 0 {
		cfg.WebsocketPingFrequencySec = defaultConfig().WebsocketPingFrequencySec
	}
	if cfg.FeedRecomputeIntervalMs <= 0 {
		cfg.FeedRecomputeIntervalMs = defaultConfig().FeedRecomputeIntervalMs
	}
	if cfg.PersonFeedChunkSize <= 0 {
		cfg.PersonFeedChunkSize = defaultConfig().PersonFeedChunkSize
	}
	if cfg.MinionIdleTimeoutSec <= 0 {
		cfg.MinionIdleTimeoutSec = defaultConfig().MinionIdleTimeoutSec
	}
	if cfg.TaskTickMillis <= 0 {
		cfg.TaskTickMillis = defaultConfig().TaskTickMillis
	}
	if cfg.OverlordTickMillis <= 0 {
		cfg.OverlordTickMillis = defaultConfig().OverlordTickMillis
	}
	if cfg.ShutdownJoinTimeoutSec <= 0 {
		cfg.ShutdownJoinTimeoutSec = defaultConfig().ShutdownJoinTimeoutSec
	}
	if cfg.WebsocketConnectTimeoutSec <= 0 {
		cfg.WebsocketConnectTimeoutSec = defaultConfig().WebsocketConnectTimeoutSec
	}
	if cfg.Nip11FetchTimeoutSec <= 0 {
		cfg.Nip11FetchTimeoutSec = defaultConfig().Nip11FetchTimeoutSec
	}
	cfg.fillDataDir(path)
	return cfg, nil
}

func (c *Config) fillDataDir(cfgPath string) {
	if c.DataDir != "" {
		return
	}
	c.DataDir = filepath.Join(filepath.Dir(cfgPath), "data")
}

// FutureAllowance returns FutureAllowanceSecs as a time.Duration.
func (c Config) FutureAllowance() time.Duration {
	return time.Duration(c.FutureAllowanceSecs) * time.Second
}

// UndoSendWindow returns UndoSendSeconds as a time.Duration.
func (c Config) UndoSendWindow() time.Duration {
	return time.Duration(c.UndoSendSeconds) * time.Second
}

// PingFrequency returns WebsocketPingFrequencySec as a time.Duration.
func (c Config) PingFrequency() time.Duration {
	return time.Duration(c.WebsocketPingFrequencySec) * time.Second
}

// FeedRecomputeInterval returns FeedRecomputeIntervalMs as a time.Duration.
func (c Config) FeedRecomputeInterval() time.Duration {
	return time.Duration(c.FeedRecomputeIntervalMs) * time.Millisecond
}

// MinionIdleTimeout returns MinionIdleTimeoutSec as a time.Duration.
func (c Config) MinionIdleTimeout() time.Duration {
	return time.Duration(c.MinionIdleTimeoutSec) * time.Second
}

// TaskTick returns TaskTickMillis as a time.Duration.
func (c Config) TaskTick() time.Duration {
	return time.Duration(c.TaskTickMillis) * time.Millisecond
}

// OverlordTick returns OverlordTickMillis as a time.Duration.
func (c Config) OverlordTick() time.Duration {
	return time.Duration(c.OverlordTickMillis) * time.Millisecond
}

// ShutdownJoinTimeout returns ShutdownJoinTimeoutSec as a time.Duration.
func (c Config) ShutdownJoinTimeout() time.Duration {
	return time.Duration(c.ShutdownJoinTimeoutSec) * time.Second
}

// WebsocketConnectTimeout returns WebsocketConnectTimeoutSec as a time.Duration.
func (c Config) WebsocketConnectTimeout() time.Duration {
	return time.Duration(c.WebsocketConnectTimeoutSec) * time.Second
}

// Nip11FetchTimeout returns Nip11FetchTimeoutSec as a time.Duration.
func (c Config) Nip11FetchTimeout() time.Duration {
	return time.Duration(c.Nip11FetchTimeoutSec) * time.Second
}
