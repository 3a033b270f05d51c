package pgembed

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/pgembed/pgembed/archive"
	"github.com/pgembed/pgembed/extensions"
	"github.com/pgembed/pgembed/internal/backoff"
	"github.com/pgembed/pgembed/internal/pglog"
	"github.com/pgembed/pgembed/internal/runner"
)

// Postgres is the lifecycle controller for one private PostgreSQL
// instance: a state machine over NotInstalled -> Installed -> Stopped <->
// Started, serialized by an internal mutex so exactly one
// lifecycle-mutating operation runs at a time per instance.
type Postgres struct {
	settings *Settings

	mu               sync.Mutex
	status           Status
	pid              int
	installedVersion archive.Version
}

// NewPostgres wraps settings in a controller. The zero-value status is
// NotInstalled until Setup runs.
func NewPostgres(settings *Settings) *Postgres {
	return &Postgres{settings: settings}
}

// Settings returns the controller's configuration, reflecting any port
// assigned by Start.
func (p *Postgres) Settings() *Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Status returns the controller's current lifecycle state.
func (p *Postgres) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Postgres) logf() pglog.Logf {
	if p.settings.Logf != nil {
		return p.settings.Logf
	}
	return pglog.Discard
}

func (p *Postgres) facade() *archive.Facade {
	return archive.DefaultFacade
}

// binMarker is the file whose presence indicates the installation
// directory already has binaries extracted into it.
func (p *Postgres) binMarker() string {
	return filepath.Join(p.settings.BinDir(), "pg_ctl")
}

func (p *Postgres) pgVersionMarker() string {
	return filepath.Join(p.settings.DataDir, "PG_VERSION")
}

// Setup downloads and extracts the binaries if the installation directory
// lacks them, then runs initdb if the data directory is uninitialized. It
// is idempotent: a second call on an already-prepared directory performs
// no network I/O and no reinitialization.
func (p *Postgres) Setup(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settings.SetupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.SetupTimeout)
		defer cancel()
	}

	if _, statErr := os.Stat(p.binMarker()); statErr != nil {
		if err := p.installBinaries(ctx); err != nil {
			return err
		}
	}
	p.status = Installed

	if _, statErr := os.Stat(p.pgVersionMarker()); statErr != nil {
		if err := p.initdb(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
		}
	}
	p.status = Stopped
	return nil
}

func (p *Postgres) installBinaries(ctx context.Context) error {
	version, bytes, err := p.getArchive(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.settings.InstallationDir, 0o755); err != nil {
		return wrapIO("pgembed: create installation dir", err)
	}
	if _, err := p.facade().Extract(ctx, p.settings.ReleasesURL, bytes, p.settings.InstallationDir); err != nil {
		return err
	}
	p.installedVersion = version
	p.logf()("pgembed: installed PostgreSQL %s into %s", version, p.settings.InstallationDir)
	return nil
}

func (p *Postgres) getArchive(ctx context.Context) (archive.Version, []byte, error) {
	a, err := p.facade().GetArchive(ctx, p.settings.ReleasesURL, p.settings.Version)
	if err != nil {
		return archive.Version{}, nil, err
	}
	return a.Version, a.Bytes, nil
}

// passwordFile writes the bootstrap password to a 0600 file for initdb's
// --pwfile and returns a cleanup func.
func (p *Postgres) passwordFile() (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "pgembed-pwfile-*")
	if err != nil {
		return "", nil, err
	}
	path = f.Name()
	if err := os.Chmod(path, 0o600); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, err
	}
	if _, err := f.WriteString(p.settings.Password + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, err
	}
	return path, func() { os.Remove(path) }, nil
}

func (p *Postgres) initdb(ctx context.Context) error {
	if err := os.MkdirAll(p.settings.DataDir, 0o700); err != nil {
		return wrapIO("pgembed: create data dir", err)
	}

	pwFile, cleanup, err := p.passwordFile()
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := &runner.Command{
		Dir:     p.settings.BinDir(),
		Program: "initdb",
		Args: []string{
			"-D", p.settings.DataDir,
			"-U", p.settings.Username,
			"--pwfile=" + pwFile,
			"-E", "UTF8",
			"-A", "md5",
		},
		Logf: pglog.Prefixed(p.logf(), "initdb: "),
	}
	_, stderr, err := cmd.Execute(ctx, p.settings.SetupTimeout)
	if err != nil {
		return fmt.Errorf("initdb: %w (%s)", err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// Start resolves an ephemeral port if needed, spawns pg_ctl start, and
// polls pg_isready with a jittered backoff until the server accepts
// connections or StartTimeout elapses.
func (p *Postgres) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == NotInstalled || p.status == Installed {
		return fmt.Errorf("%w: run Setup before Start (status %s)", ErrNotInstalled, p.status)
	}
	if p.status != Stopped {
		return fmt.Errorf("%w: Start requires Stopped, have %s", ErrStartFailed, p.status)
	}

	if p.settings.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.StartTimeout)
		defer cancel()
	}

	// The server needs a concrete port even in socket mode: the socket
	// file is named .s.PGSQL.{port}.
	if p.settings.Port == 0 {
		port, err := freeTCPPort()
		if err != nil {
			return fmt.Errorf("%w: allocate ephemeral port: %v", ErrStartFailed, err)
		}
		p.settings.Port = port
	}

	args := []string{
		"start",
		"-D", p.settings.DataDir,
		"-w",
		"-t", strconv.Itoa(int(p.settings.StartTimeout.Seconds())),
		"-o", p.serverOptions(),
	}
	cmd := &runner.Command{
		Dir:     p.settings.BinDir(),
		Program: "pg_ctl",
		Args:    args,
		Logf:    pglog.Prefixed(p.logf(), "postgres: "),
	}
	_, stderr, err := cmd.Execute(ctx, p.settings.StartTimeout)
	if err != nil {
		return fmt.Errorf("%w: pg_ctl start: %v (%s)", ErrStartFailed, err, strings.TrimSpace(string(stderr)))
	}

	if err := p.waitReady(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	p.pid = p.readPostmasterPID()
	p.status = Started
	return nil
}

// readPostmasterPID reads the server's PID from the first line of
// data/postmaster.pid. Zero means the file was missing or malformed; the
// server is still usable, callers just can't observe the PID.
func (p *Postgres) readPostmasterPID() int {
	b, err := os.ReadFile(filepath.Join(p.settings.DataDir, "postmaster.pid"))
	if err != nil {
		return 0
	}
	line, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0
	}
	return pid
}

// PID returns the running server's process id, or zero when the server is
// not Started (or its pid file could not be read).
func (p *Postgres) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// serverOptions renders Settings.Configuration and the chosen port/socket
// as a single "-o" string of "-c key=value" pairs, passed through
// pg_ctl's -o to the underlying postgres process it spawns.
func (p *Postgres) serverOptions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-p %d", p.settings.Port)
	if p.settings.SocketDir != "" {
		fmt.Fprintf(&b, " -c unix_socket_directories=%s -c listen_addresses=''", p.settings.SocketDir)
	}

	keys := make([]string, 0, len(p.settings.Configuration))
	for k := range p.settings.Configuration {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " -c %s=%s", k, p.settings.Configuration[k])
	}
	return b.String()
}

func (p *Postgres) waitReady(ctx context.Context) error {
	bo := backoff.New("pg_isready", p.logf(), 2*time.Second)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := &runner.Command{
			Dir:     p.settings.BinDir(),
			Program: "pg_isready",
			Args:    p.connArgs(),
		}
		_, _, err := cmd.Execute(ctx, 5*time.Second)
		if err == nil {
			return nil
		}
		bo.BackOff(ctx, err)
	}
}

// connArgs builds the -h/-p (or socket dir) arguments shared by
// pg_isready and psql invocations.
func (p *Postgres) connArgs() []string {
	host := p.settings.Host
	if p.settings.SocketDir != "" {
		host = p.settings.SocketDir
	}
	return []string{"-h", host, "-p", strconv.Itoa(p.settings.Port), "-U", p.settings.Username}
}

func freeTCPPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Stop issues a smart shutdown, escalating to fast then immediate if
// StopTimeout elapses at each stage.
func (p *Postgres) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Started {
		return fmt.Errorf("%w: stop() requires Started, have %s", ErrStopFailed, p.status)
	}

	for _, mode := range []string{"smart", "fast", "immediate"} {
		cmd := &runner.Command{
			Dir:     p.settings.BinDir(),
			Program: "pg_ctl",
			Args:    []string{"stop", "-D", p.settings.DataDir, "-m", mode, "-w", "-t", strconv.Itoa(int(p.settings.StopTimeout.Seconds()))},
			Logf:    pglog.Prefixed(p.logf(), "pg_ctl: "),
		}
		_, stderr, err := cmd.Execute(ctx, p.settings.StopTimeout)
		if err == nil {
			p.status = Stopped
			p.pid = 0
			return nil
		}
		var timeoutErr *runner.TimeoutError
		if !asTimeout(err, &timeoutErr) {
			return fmt.Errorf("%w: pg_ctl stop -m %s: %v (%s)", ErrStopFailed, mode, err, strings.TrimSpace(string(stderr)))
		}
		p.logf()("pgembed: stop -m %s timed out, escalating", mode)
	}
	return fmt.Errorf("%w: exhausted shutdown escalation (smart, fast, immediate)", ErrStopFailed)
}

func asTimeout(err error, target **runner.TimeoutError) bool {
	if t, ok := err.(*runner.TimeoutError); ok {
		*target = t
		return true
	}
	return false
}

// psql runs a single statement against the bootstrap database and returns
// its trimmed stdout.
func (p *Postgres) psql(ctx context.Context, sql string) (string, error) {
	args := append(append([]string{}, p.connArgs()...), "-d", p.settings.Database, "-tAc", sql)
	cmd := &runner.Command{
		Dir:     p.settings.BinDir(),
		Program: "psql",
		Args:    args,
		Env:     []string{"PGPASSWORD=" + p.settings.Password},
	}
	stdout, stderr, err := cmd.Execute(ctx, p.settings.Timeout)
	if err != nil {
		return "", fmt.Errorf("psql: %w (%s)", err, strings.TrimSpace(string(stderr)))
	}
	return strings.TrimSpace(string(stdout)), nil
}

// CreateDatabase creates a new database named name via a short psql
// invocation against the bootstrap database.
func (p *Postgres) CreateDatabase(ctx context.Context, name string) error {
	_, err := p.psql(ctx, fmt.Sprintf("CREATE DATABASE %s", quoteIdent(name)))
	return err
}

// DropDatabase drops the database named name.
func (p *Postgres) DropDatabase(ctx context.Context, name string) error {
	_, err := p.psql(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdent(name)))
	return err
}

// DatabaseExists reports whether a database named name exists.
func (p *Postgres) DatabaseExists(ctx context.Context, name string) (bool, error) {
	out, err := p.psql(ctx, fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = %s", quoteLiteral(name)))
	if err != nil {
		return false, err
	}
	return out == "1", nil
}

// Open returns a database/sql connection pool over the bootstrap
// database, verified with a ping so callers get a usable pool or an
// error, never a lazily-failing one. It requires Started; callers are
// responsible for closing the returned pool.
func (p *Postgres) Open(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	status, dsn := p.status, p.settings.URL()
	p.mu.Unlock()

	if status != Started {
		return nil, fmt.Errorf("%w: Open() requires Started, have %s", ErrStartFailed, status)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgembed: open connection pool: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgembed: ping %s: %w", p.settings.Database, err)
	}
	return db, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

// postgresqlVersion returns the version extension repositories embed into
// their release queries: the resolved installation version when Setup ran
// in this process, falling back to the data directory's PG_VERSION marker
// (which only ever records the major version) for a controller resumed
// against an already-initialized directory.
func (p *Postgres) postgresqlVersion() string {
	if p.installedVersion != (archive.Version{}) {
		return p.installedVersion.String()
	}
	b, err := os.ReadFile(p.pgVersionMarker())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// AvailableExtensions lists every extension published by the registered
// extensions.Repository kinds.
func (p *Postgres) AvailableExtensions(ctx context.Context) ([]extensions.AvailableExtension, error) {
	return extensions.GetAvailableExtensions(ctx, extensions.Default)
}

// InstalledExtensions lists the extensions already placed into this
// installation, per their manifest sidecars.
func (p *Postgres) InstalledExtensions() ([]extensions.InstalledExtension, error) {
	p.mu.Lock()
	extDir := p.settings.ExtensionDir()
	p.mu.Unlock()
	return extensions.GetInstalledExtensions(extDir)
}

// InstallExtension downloads and places the named extension from
// namespace into this installation's lib and extension directories,
// recording it in a manifest sidecar.
func (p *Postgres) InstallExtension(ctx context.Context, namespace, name string, req archive.VersionRequirement) (extensions.InstalledExtension, error) {
	p.mu.Lock()
	libDir, extDir, pgVersion := p.settings.LibDir(), p.settings.ExtensionDir(), p.postgresqlVersion()
	p.mu.Unlock()
	return extensions.Install(ctx, extensions.Default, pgVersion, libDir, extDir, namespace, name, req)
}

// UninstallExtension removes a previously installed extension's files and
// manifest sidecar.
func (p *Postgres) UninstallExtension(namespace, name string) error {
	p.mu.Lock()
	extDir := p.settings.ExtensionDir()
	p.mu.Unlock()
	return extensions.Uninstall(extDir, namespace, name)
}

// Close releases the controller: if Started, it stops the server; if
// Settings.Temporary is set, it removes InstallationDir. Cleanup errors
// are logged, not returned.
func (p *Postgres) Close(ctx context.Context) error {
	if p.Status() == Started {
		if err := p.Stop(ctx); err != nil {
			p.logf()("pgembed: stop during close failed: %v", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.Temporary {
		if err := os.RemoveAll(p.settings.InstallationDir); err != nil {
			p.logf()("pgembed: cleanup of %s failed: %v", p.settings.InstallationDir, err)
		}
	}
	return nil
}
