package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliEnv runs commands against a fake backend with an isolated state
// directory
type cliEnv struct {
	backend *testutil.FakeBackend
	home    string
	stdin   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("HDT_WS_URL", "")
	t.Setenv("HDT_ASSET_BASE", "")
	t.Setenv("HDT_SPOOL", "true")
	return &cliEnv{backend: testutil.NewFakeBackend(t), home: testutil.CreateTempDir(t)}
}

// resetCommands restores every flag to its default and hands every command
// the new context; cobra keeps both between executions
func resetCommands(c *cobra.Command, ctx context.Context) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		resetCommands(sub, ctx)
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resetCommands(rootCmd, ctx)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(e.stdin))
	rootCmd.SetArgs(append([]string{"--api-url", e.backend.APIURL(), "--home", e.home, "--env-file", ""}, args...))

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: error = %v\n%s", args, err, out)
	}
	return out
}

// login seeds a user and stores its token the way the login command does
func (e *cliEnv) login(t *testing.T) {
	t.Helper()
	token := e.backend.SeedUser("ana", "secret")
	store := internal.NewFileCredentialStore(filepath.Join(e.home, "credentials.yaml"))
	if err := store.Save(token); err != nil {
		t.Fatal(err)
	}
}

func (e *cliEnv) spool(t *testing.T) *internal.Spool {
	t.Helper()
	s, err := internal.OpenSpool(filepath.Join(e.home, "spool.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// idFrom extracts the number following prefix in out
func idFrom(t *testing.T, out, prefix string) int {
	t.Helper()
	m := regexp.MustCompile(regexp.QuoteMeta(prefix) + ` (\d+)`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no %q id in output:\n%s", prefix, out)
	}
	id, _ := strconv.Atoi(m[1])
	return id
}
