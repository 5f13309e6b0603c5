package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"chatgate/config"
	"chatgate/mcp"
	"chatgate/provider"
	"chatgate/storage"
)

// app holds everything a command needs. Build it with newApp and always
// close it.
type app struct {
	settings *config.Settings
	creds    *config.CredentialStore
	configs  *config.Manager
	manager  *provider.Manager
	tools    *mcp.Client
	log      logrus.FieldLogger

	closers []io.Closer
	cancel  context.CancelFunc
}

type appOptions struct {
	// connectTools starts the configured MCP servers.
	connectTools bool
	// watchConfig re-imports external edits when the file store is used.
	watchConfig bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if verbose {
		settings.LogLevel = "debug"
	}
	logCloser, err := config.InitLogging(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	a := &app{
		settings: settings,
		log:      logrus.StandardLogger(),
		closers:  []io.Closer{logCloser},
		cancel:   cancel,
	}
	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts appOptions) error {
	dataDir := a.settings.DataDir()

	passphrase, err := sshPassphrase(a.settings)
	if err != nil {
		return err
	}
	a.creds = config.NewCredentialStore(a.settings.CredentialStorage, dataDir, a.settings.SSHKeyPath, passphrase)
	if err := a.creds.Load(); err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := provider.NewMetrics(registry)
	if metricsAddr != "" {
		a.serveMetrics(registry)
	}

	a.configs = config.NewManager(config.ManagerOptions{Store: store, Logger: a.log})
	if fs, ok := store.(*storage.FileStore); ok && opts.watchConfig {
		go a.watchConfig(ctx, fs)
	}

	a.tools = mcp.NewClient(Version, a.log)
	a.closers = append(a.closers, closerFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.tools.Close(ctx)
	}))
	if opts.connectTools {
		for _, ts := range a.settings.ToolServers {
			if err := a.tools.Connect(ctx, ts); err != nil {
				a.log.WithError(err).WithField("server", ts.Name).Warn("Failed to connect tool server")
			}
		}
	}

	a.manager = provider.NewManager(provider.ManagerOptions{
		Configs:     a.configs,
		Credentials: a.creds,
		Metrics:     metrics,
		Tools:       a.tools,
		Logger:      a.log,
	})
	return nil
}

func (a *app) openStore() (config.Store, error) {
	dataDir := a.settings.DataDir()
	switch a.settings.Store {
	case config.StoreFile:
		fs, err := storage.NewFileStore(dataDir, a.log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		db, err := storage.NewSQLiteStore(dataDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	}
}

// watchConfig imports edits other processes make to the config file. An
// invalid edit is logged and the current configs are kept.
func (a *app) watchConfig(ctx context.Context, fs *storage.FileStore) {
	err := fs.Watch(ctx, config.StorageKey, func(content string) {
		if err := a.configs.Import(content); err != nil {
			a.log.WithError(err).Warn("Ignoring invalid config edit")
		}
	})
	if err != nil {
		a.log.WithError(err).Warn("Config watcher stopped")
	}
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Metrics server failed")
		}
	}()
	a.closers = append(a.closers, srv)
	a.log.Infof("Serving metrics on %s/metrics", metricsAddr)
}

// Close stops background work and releases resources in reverse order.
func (a *app) Close() {
	a.cancel()
	if a.manager != nil {
		a.manager.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.WithError(err).Debug("Close failed")
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// sshPassphrase returns the passphrase for an encrypted SSH key, from
// CHATGATE_SSH_PASSPHRASE or an interactive prompt.
func sshPassphrase(s *config.Settings) (string, error) {
	if s.CredentialStorage != config.SecuritySSHKey {
		return "", nil
	}
	if p := os.Getenv("CHATGATE_SSH_PASSPHRASE"); p != "" {
		return p, nil
	}
	encrypted, err := config.IsSSHKeyEncrypted(config.ExpandPath(s.SSHKeyPath))
	if err != nil || !encrypted {
		// A broken key path is reported by the credential store itself.
		return "", nil
	}
	return readSecret(fmt.Sprintf("Passphrase for %s: ", s.SSHKeyPath))
}

// readSecret prompts on stderr and reads a line without echo when stdin is
// a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(os.Stdin)
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(secret), nil
}

// terminalWidth returns the stdout width, or 80 when it is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
