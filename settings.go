package pgembed

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-password/password"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/internal/pglog"
)

const (
	defaultReleasesURL   = "https://repo1.maven.org/maven2/io/zonky/test/postgres"
	defaultUsername      = "postgres"
	defaultDatabase      = "postgres"
	defaultSetupTimeout  = 60 * time.Second
	defaultStartTimeout  = 30 * time.Second
	defaultStopTimeout   = 30 * time.Second
	defaultOpTimeout     = 10 * time.Second
	generatedPasswordLen = 32
)

// Settings configures a Postgres controller: where to fetch a release
// from, what version, where to install it, networking, credentials,
// timeouts, and extra PostgreSQL GUCs. Fields are plain and exported, but
// the zero value is rarely useful directly; use New, which fills in
// environment-derived defaults.
type Settings struct {
	// ReleasesURL selects which repository (and, through the registries,
	// which matcher/extractor) resolves Version. Defaults to the Zonky
	// Maven Central coordinate.
	ReleasesURL string
	// Version constrains which release is resolved. Defaults to "*"
	// (highest available), unless PGEMBED_VERSION is set in the
	// environment, which is used as a literal override.
	Version archive.VersionRequirement

	// InstallationDir is the root under which the unpacked PG tree lives.
	// Empty means a fresh temporary directory is allocated, and Temporary
	// defaults to true.
	InstallationDir string
	// DataDir is the initialized cluster directory; defaults to
	// InstallationDir/data.
	DataDir string
	// SocketDir, if set, enables Unix-socket mode: Host becomes the socket
	// directory path and TCP is disabled.
	SocketDir string

	Host string
	// Port 0 means ephemeral: start() asks the OS for an unused port.
	Port int

	Username string
	Password string
	Database string

	// Temporary, if true, means InstallationDir (and DataDir, if nested
	// under it) are removed when the controller is closed.
	Temporary bool

	// Timeout bounds individual psql/pg_ctl invocations issued by
	// CreateDatabase/DropDatabase/DatabaseExists.
	Timeout time.Duration
	// SetupTimeout bounds setup() (download + extract + initdb).
	SetupTimeout time.Duration
	// StartTimeout bounds start()'s readiness wait.
	StartTimeout time.Duration
	// StopTimeout bounds stop()'s graceful-shutdown wait before escalating.
	StopTimeout time.Duration

	// Configuration holds extra PostgreSQL GUCs passed at start via -c.
	Configuration map[string]string

	// Logf receives log lines from this controller and the PG
	// subprocesses it supervises. Defaults to pglog.Default() when nil.
	Logf pglog.Logf
}

// Option configures a Settings value, applied in New.
type Option func(*Settings)

// WithReleasesURL overrides the default Zonky repository URL.
func WithReleasesURL(url string) Option {
	return func(s *Settings) { s.ReleasesURL = url }
}

// WithVersion sets a version requirement, e.g. "16.4.0", "~16", "*".
func WithVersion(req archive.VersionRequirement) Option {
	return func(s *Settings) { s.Version = req }
}

// WithInstallationDir pins the installation root and disables Temporary
// cleanup; Temporary defaults to true only when InstallationDir is left
// for New to choose.
func WithInstallationDir(dir string) Option {
	return func(s *Settings) {
		s.InstallationDir = dir
		s.Temporary = false
	}
}

// WithDataDir overrides the default InstallationDir/data location.
func WithDataDir(dir string) Option {
	return func(s *Settings) { s.DataDir = dir }
}

// WithSocketDir enables Unix-socket mode.
func WithSocketDir(dir string) Option {
	return func(s *Settings) { s.SocketDir = dir }
}

// WithHost overrides the default "localhost".
func WithHost(host string) Option {
	return func(s *Settings) { s.Host = host }
}

// WithPort pins a specific port instead of an ephemeral one.
func WithPort(port int) Option {
	return func(s *Settings) { s.Port = port }
}

// WithCredentials overrides the default postgres/<random> credentials.
func WithCredentials(username, password string) Option {
	return func(s *Settings) {
		s.Username = username
		s.Password = password
	}
}

// WithDatabase overrides the default bootstrap database name "postgres".
func WithDatabase(name string) Option {
	return func(s *Settings) { s.Database = name }
}

// WithTemporary overrides the default temporary-ness.
func WithTemporary(temporary bool) Option {
	return func(s *Settings) { s.Temporary = temporary }
}

// WithTimeout overrides the per-command operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) { s.Timeout = d }
}

// WithSetupTimeout overrides the setup() deadline.
func WithSetupTimeout(d time.Duration) Option {
	return func(s *Settings) { s.SetupTimeout = d }
}

// WithStartTimeout overrides the start() readiness-wait deadline.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Settings) { s.StartTimeout = d }
}

// WithStopTimeout overrides the stop() graceful-shutdown deadline.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Settings) { s.StopTimeout = d }
}

// WithConfiguration sets extra PostgreSQL GUCs passed via -c at start.
func WithConfiguration(config map[string]string) Option {
	return func(s *Settings) { s.Configuration = config }
}

// WithLogf overrides the default zap-backed logger.
func WithLogf(logf pglog.Logf) Option {
	return func(s *Settings) { s.Logf = logf }
}

// New builds a Settings value with environment-derived defaults, then
// applies opts in order.
func New(opts ...Option) (*Settings, error) {
	req := archive.AnyVersion
	if v := os.Getenv("PGEMBED_VERSION"); v != "" {
		parsed, err := archive.ParseVersionRequirement(v)
		if err != nil {
			return nil, fmt.Errorf("pgembed: PGEMBED_VERSION=%q: %w", v, err)
		}
		req = parsed
	}

	pw, err := password.Generate(generatedPasswordLen, 6, 0, false, true)
	if err != nil {
		return nil, fmt.Errorf("pgembed: generate default password: %w", err)
	}

	s := &Settings{
		ReleasesURL:  defaultReleasesURL,
		Version:      req,
		Host:         "localhost",
		Port:         0,
		Username:     defaultUsername,
		Password:     pw,
		Database:     defaultDatabase,
		Temporary:    true,
		Timeout:      defaultOpTimeout,
		SetupTimeout: defaultSetupTimeout,
		StartTimeout: defaultStartTimeout,
		StopTimeout:  defaultStopTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.InstallationDir == "" {
		dir, err := os.MkdirTemp("", "pgembed-*")
		if err != nil {
			return nil, fmt.Errorf("pgembed: allocate installation dir: %w", err)
		}
		s.InstallationDir = dir
	}
	if s.DataDir == "" {
		s.DataDir = filepath.Join(s.InstallationDir, "data")
	}
	if s.Logf == nil {
		s.Logf = pglog.Default()
	}

	return s, nil
}

// BinDir is the directory holding the extracted PG executables.
func (s *Settings) BinDir() string { return filepath.Join(s.InstallationDir, "bin") }

// LibDir is the directory holding shared-library extension files.
func (s *Settings) LibDir() string { return filepath.Join(s.InstallationDir, "lib") }

// ExtensionDir is the directory holding .control/.sql extension files.
func (s *Settings) ExtensionDir() string {
	return filepath.Join(s.InstallationDir, "share", "postgresql", "extension")
}

// URL renders the settings as a postgres:// connection string accepted by
// lib/pq, or the socket form when SocketDir is set. An embedded instance
// never serves TLS, hence sslmode=disable.
func (s *Settings) URL() string {
	if s.SocketDir != "" {
		return fmt.Sprintf("postgresql://%s:%s@:%d/%s?host=%s&sslmode=disable", s.Username, s.Password, s.Port, s.Database, s.SocketDir)
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable", s.Username, s.Password, s.Host, s.Port, s.Database)
}
