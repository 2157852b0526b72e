package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eddmann/whatsapp-archive/internal/bridge"
	"github.com/eddmann/whatsapp-archive/internal/cache"
	"github.com/eddmann/whatsapp-archive/internal/config"
	"github.com/eddmann/whatsapp-archive/internal/store"
)

var doctorBridge bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics",
	Long: `Run diagnostics to check the health of your setup.

Checks:
- Config directory and config file
- Chat history database and its schema
- Session store with account contacts
- Redis name cache (when configured)
- ffmpeg, used to convert voice messages
- Bridge reachability (with --bridge)`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorBridge, "bridge", false, "Also check that the bridge answers")
}

// Check is the outcome of one diagnostic.
type Check struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Path     string `json:"path,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Diagnosis is the doctor command's result.
type Diagnosis struct {
	Checks  []Check `json:"checks"`
	Healthy bool    `json:"healthy"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	checks := []Check{
		checkConfigDir(),
		checkMessagesDB(ctx, cfg.MessagesDB),
		checkAccountDB(ctx, cfg.AccountDB),
		checkFFmpeg(),
	}
	if cfg.CacheEnabled() {
		checks = append(checks, checkCache(cfg))
	}
	if doctorBridge {
		checks = append(checks, checkBridge(ctx, cfg.BridgeURL))
	}

	d := Diagnosis{Checks: checks, Healthy: true}
	for _, c := range checks {
		if !c.OK && !c.Optional {
			d.Healthy = false
		}
	}

	if !IsText() {
		return Output(cmd, d)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "WhatsApp Archive Diagnostics")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w)
	for _, c := range d.Checks {
		status := "FAIL"
		switch {
		case c.OK:
			status = "OK"
		case c.Optional:
			status = "WARN"
		}
		fmt.Fprintf(w, "[%s] %s\n", status, c.Name)
		if c.Path != "" {
			fmt.Fprintf(w, "      Path: %s\n", c.Path)
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "      %s\n", c.Detail)
		}
	}
	fmt.Fprintln(w)
	if d.Healthy {
		fmt.Fprintln(w, "All checks passed!")
	} else {
		fmt.Fprintln(w, "Some checks failed. Is the bridge running and pointed at the same store?")
	}
	return nil
}

func checkConfigDir() Check {
	c := Check{Name: "Config", Path: config.Dir(), Optional: true, OK: true}
	if cfg.File != "" {
		c.Detail = "using " + cfg.File
	} else {
		c.Detail = "no config file, using defaults and environment"
	}
	return c
}

func checkMessagesDB(ctx context.Context, path string) Check {
	c := Check{Name: "Messages Database", Path: path}
	if _, err := os.Stat(path); err != nil {
		c.Detail = "not found; run the bridge first"
		return c
	}

	db, err := store.Open(path)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	defer db.CloseQuietly()

	ok, err := db.HasBridgeSchema(ctx)
	if err != nil || !ok {
		c.Detail = "chats and messages tables missing"
		return c
	}
	stats, err := db.Stats(ctx)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%d chats, %d messages, %d nicknames", stats.Chats, stats.Messages, stats.Nicknames)
	return c
}

func checkAccountDB(ctx context.Context, path string) Check {
	c := Check{Name: "Session Store", Path: path, Optional: true}
	acc, err := store.OpenAccounts(path)
	if err != nil {
		c.Detail = "contacts unavailable: " + err.Error()
		return c
	}
	defer func() { _ = acc.Close() }()

	contacts, err := acc.AllContacts(ctx)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%d contacts", len(contacts))
	return c
}

func checkFFmpeg() Check {
	c := Check{Name: "ffmpeg", Optional: true}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		c.Detail = "not found; voice messages must already be Ogg Opus"
		return c
	}
	c.OK = true
	c.Path = filepath.Clean(p)
	return c
}

func checkCache(conf *config.Config) Check {
	c := Check{Name: "Name Cache", Path: conf.RedisAddr, Optional: true}
	names, err := cache.NewNames(cache.Config{Addr: conf.RedisAddr, Password: conf.RedisPassword, DB: conf.RedisDB, TTL: conf.CacheTTL})
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	_ = names.Close()
	c.OK = true
	return c
}

func checkBridge(ctx context.Context, url string) Check {
	c := Check{Name: "Bridge", Path: url}
	if err := bridge.New(url).Reachable(ctx); err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	return c
}
