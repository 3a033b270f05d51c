package pgembed

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func testSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := New(WithInstallationDir(t.TempDir()), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestServerOptionsIncludesPortAndSortedConfig(t *testing.T) {
	s := testSettings(t)
	s.Port = 5555
	s.Configuration = map[string]string{"max_connections": "50", "shared_buffers": "128MB"}
	p := NewPostgres(s)

	got := p.serverOptions()
	want := "-p 5555 -c max_connections=50 -c shared_buffers=128MB"
	if got != want {
		t.Errorf("serverOptions() = %q, want %q", got, want)
	}
}

func TestServerOptionsWithSocketDir(t *testing.T) {
	s := testSettings(t)
	s.SocketDir = "/tmp/pgembed-sock"
	p := NewPostgres(s)

	got := p.serverOptions()
	if !strings.Contains(got, "-c unix_socket_directories=/tmp/pgembed-sock") {
		t.Errorf("serverOptions() = %q, want it to set unix_socket_directories", got)
	}
}

func TestConnArgsTCP(t *testing.T) {
	s := testSettings(t)
	s.Host, s.Port, s.Username = "localhost", 5432, "postgres"
	p := NewPostgres(s)

	got := p.connArgs()
	want := []string{"-h", "localhost", "-p", "5432", "-U", "postgres"}
	if len(got) != len(want) {
		t.Fatalf("connArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("connArgs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConnArgsSocket(t *testing.T) {
	s := testSettings(t)
	s.SocketDir = "/tmp/pgembed-sock"
	s.Port = 5433
	s.Username = "postgres"
	p := NewPostgres(s)

	got := p.connArgs()
	want := []string{"-h", "/tmp/pgembed-sock", "-p", "5433", "-U", "postgres"}
	if len(got) != len(want) {
		t.Fatalf("connArgs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("connArgs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQuoteIdentAndLiteral(t *testing.T) {
	if got, want := quoteIdent(`my"db`), `"my""db"`; got != want {
		t.Errorf("quoteIdent = %q, want %q", got, want)
	}
	if got, want := quoteLiteral(`o'brien`), `'o''brien'`; got != want {
		t.Errorf("quoteLiteral = %q, want %q", got, want)
	}
}

func TestStartRequiresStopped(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)
	// status zero value is NotInstalled, not Stopped.
	if err := p.Start(context.Background()); err == nil {
		t.Error("Start() from NotInstalled should fail")
	}
}

func TestOpenRequiresStarted(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)
	if _, err := p.Open(context.Background()); err == nil {
		t.Error("Open() from NotInstalled should fail")
	}
}

func TestStopRequiresStarted(t *testing.T) {
	s := testSettings(t)
	p := NewPostgres(s)
	if err := p.Stop(context.Background()); err == nil {
		t.Error("Stop() from NotInstalled should fail")
	}
}

func TestCloseRemovesTemporaryInstallationDir(t *testing.T) {
	s, err := New(WithInstallationDir(t.TempDir()), WithTemporary(true), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !s.Temporary {
		t.Fatal("test setup expects Temporary")
	}
	p := NewPostgres(s)
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.InstallationDir); !os.IsNotExist(err) {
		t.Errorf("InstallationDir should have been removed, stat err = %v", err)
	}
}

// TestFullLifecycle exercises Setup/Start/CreateDatabase/DatabaseExists/
// DropDatabase/Stop end to end against a real downloaded PostgreSQL
// release. Opt-in: it needs network access and a writable cache.
func TestFullLifecycle(t *testing.T) {
	if os.Getenv("PGEMBED_RUN_INTEGRATION") == "" {
		t.Skip("set PGEMBED_RUN_INTEGRATION=1 to run against a real downloaded PostgreSQL release")
	}
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}

	s, err := New(WithInstallationDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPostgres(s)
	ctx := context.Background()

	if err := p.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	if got := p.Status(); got != Stopped {
		t.Fatalf("Status() after Setup = %s, want Stopped", got)
	}

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	if err := p.CreateDatabase(ctx, "widgets"); err != nil {
		t.Fatal(err)
	}
	exists, err := p.DatabaseExists(ctx, "widgets")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("DatabaseExists(widgets) = false, want true after CreateDatabase")
	}
	if err := p.DropDatabase(ctx, "widgets"); err != nil {
		t.Fatal(err)
	}

	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
