package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/singlebase/singlebase-go/cli/config"
	"github.com/singlebase/singlebase-go/cli/keystore"
	"github.com/singlebase/singlebase-go/core"
	"github.com/singlebase/singlebase-go/middleware"
	"github.com/singlebase/singlebase-go/telemetry"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// ClientFactory creates a Singlebase client from resolved settings.
type ClientFactory func(cfg core.Config, opts ...core.Option) (*core.Client, error)

// KeystoreFactory opens the keystore for a backend name ("file", "keyring",
// or empty for the default).
type KeystoreFactory func(backend string) (keystore.Keystore, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig   ConfigLoader
	newClient    ClientFactory
	openKeystore KeystoreFactory
	loadDotEnv   func(dir string) error
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer

	cfgFile    string
	profile    string
	apiURL     string
	jsonOutput bool
	verbose    bool
	timeout    time.Duration

	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithClientFactory injects a client factory dependency.
func WithClientFactory(factory ClientFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newClient = factory
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.openKeystore = factory
		}
	}
}

// WithDotEnvLoader replaces the .env loader. Pass a no-op in tests.
func WithDotEnvLoader(load func(dir string) error) AppOption {
	return func(a *App) {
		if load != nil {
			a.loadDotEnv = load
		}
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:   config.LoadConfig,
		newClient:    core.NewClient,
		openKeystore: keystore.Open,
		loadDotEnv:   config.LoadDotEnv,
		stdin:        os.Stdin,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "singlebase",
		Short: "Singlebase - command-line client for the Singlebase API",
		Long: `Singlebase is a command-line interface for the Singlebase backend.

Send db, auth, storage, genai and vectordb requests, manage access keys and
connection profiles, and run a local development backend.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.singlebase/config.yaml)")
	root.PersistentFlags().StringVar(&a.profile, "profile", "", "connection profile (default from config or SINGLEBASE_PROFILE)")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API URL, overrides the profile")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "request timeout (e.g. 10s); 0 uses the profile or client default")

	root.AddCommand(a.newRequestCommand())
	for _, svc := range core.Services() {
		root.AddCommand(a.newServiceCommand(svc))
	}
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newProfileCommand())
	root.AddCommand(a.newInitCommand())
	root.AddCommand(a.newDevServerCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// Root returns the root command.
func (a *App) Root() *cobra.Command {
	return a.root
}

// SetArgs overrides the arguments parsed by Execute.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. Errors are reported on
// stderr before they are returned.
func (a *App) ExecuteContext(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()

	err := a.root.ExecuteContext(ctx)
	if err != nil {
		a.reportError(err)
	}
	return err
}

func (a *App) initConfig() error {
	if wd, err := os.Getwd(); err == nil {
		if err := a.loadDotEnv(wd); err != nil {
			return exitWithCode(ExitValidation, err)
		}
	}

	a.cfgPath = a.cfgFile
	if a.cfgPath == "" {
		a.cfgPath = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(a.cfgPath)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, a.verbose)

	if !a.isTerminal() {
		pterm.DisableStyling()
	}
	return nil
}

func (a *App) isTerminal() bool {
	f, ok := a.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newLogger builds a console logger on w: debug with --verbose, warn otherwise.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level))
}

// resolve returns the active profile with flag overrides applied.
func (a *App) resolve() (*config.Resolved, error) {
	r, err := a.cfg.Resolve(a.profile)
	if err != nil {
		return nil, exitWithCode(ExitValidation, err)
	}
	if a.apiURL != "" {
		r.APIURL = a.apiURL
	}
	if a.timeout > 0 {
		r.Timeout = a.timeout
	}
	return r, nil
}

// client builds a core.Client for the active profile. The access key comes
// from SINGLEBASE_API_KEY or the keystore entry named by the profile.
func (a *App) client() (*core.Client, error) {
	r, err := a.resolve()
	if err != nil {
		return nil, err
	}
	if r.APIURL == "" {
		return nil, exitWithCode(ExitValidation, fmt.Errorf(
			"no API URL for profile %q: use --api-url, set %sAPI_URL, or run 'singlebase profile set %s --api-url <url>'",
			r.Name, config.EnvPrefix, r.Name))
	}

	apiKey := r.APIKey
	if apiKey == "" {
		ks, err := a.openKeystore(a.cfg.Keystore)
		if err != nil {
			return nil, exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
		}
		apiKey, err = ks.Get(r.KeyRef)
		if err != nil {
			if keystore.IsNotFound(err) {
				return nil, exitWithCode(ExitValidation, fmt.Errorf(
					"no access key for profile %q: run 'singlebase keys set %s' or set %sAPI_KEY",
					r.Name, r.KeyRef, config.EnvPrefix))
			}
			return nil, exitWithCode(ExitValidation, fmt.Errorf("failed to read access key: %w", err))
		}
	}

	opts := []core.Option{
		core.WithUserAgent("singlebase-cli/" + Version),
		core.WithMiddleware(
			middleware.RequestID(),
			middleware.Logging(a.logger),
		),
	}
	if r.Timeout > 0 {
		opts = append(opts, core.WithTimeout(r.Timeout))
	}
	if r.AuthHeader != "" {
		opts = append(opts, core.WithAuthHeader(r.AuthHeader, r.AuthScheme))
	}
	if a.verbose {
		opts = append(opts, core.WithTelemetry(telemetry.NewZapHook(a.logger)))
	}

	a.logger.Debug("client configured",
		zap.String("profile", r.Name),
		zap.String("api_url", r.APIURL),
		zap.Duration("timeout", r.Timeout),
	)

	c, err := a.newClient(core.Config{APIURL: r.APIURL, APIKey: apiKey}, opts...)
	if err != nil {
		return nil, exitWithCode(ExitValidation, err)
	}
	return c, nil
}
