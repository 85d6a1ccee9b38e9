package version

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestIsNewerThan(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.0", true},
		{"1.0.0", "1.1.0", false},
		{"1.1.0", "1.1.0", false},
		{"v2.0.0", "1.9.9", true},
		{"1.1.0", "1.1.0-rc.1", true},
		{"invalid", "1.0.0", false},
		{"1.0.0", "invalid", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := isNewerThan(tt.latest, tt.current); got != tt.want {
			t.Errorf("isNewerThan(%q, %q) = %v, want %v", tt.latest, tt.current, got, tt.want)
		}
	}
}

// fakeChecker returns a Checker with a counting release source and a fixed clock.
func fakeChecker(t *testing.T, current, latest string, detectErr error) (*Checker, *int, *time.Time) {
	t.Helper()
	calls := 0
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := &Checker{
		Current:   current,
		StatePath: filepath.Join(t.TempDir(), "update_check.toml"),
		TTL:       24 * time.Hour,
		Detect: func(context.Context) (string, bool, error) {
			calls++
			if detectErr != nil {
				return "", false, detectErr
			}
			return latest, latest != "", nil
		},
		Now: func() time.Time { return now },
	}
	return c, &calls, &now
}

func TestChecker_CachesAnswer(t *testing.T) {
	c, calls, now := fakeChecker(t, "1.1.0", "1.2.0", nil)
	ctx := context.Background()

	if got := c.Check(ctx); got != "1.2.0" {
		t.Fatalf("Check() = %q, want 1.2.0", got)
	}
	if got := c.Check(ctx); got != "1.2.0" || *calls != 1 {
		t.Errorf("second check should come from the state file: got %q after %d calls", got, *calls)
	}

	*now = now.Add(25 * time.Hour)
	c.Check(ctx)
	if *calls != 2 {
		t.Errorf("a stale answer should trigger a new lookup, got %d calls", *calls)
	}
}

func TestChecker_UpgradeInvalidatesState(t *testing.T) {
	c, calls, _ := fakeChecker(t, "1.1.0", "1.2.0", nil)
	ctx := context.Background()
	c.Check(ctx)

	c.Current = "1.2.0"
	if got := c.Check(ctx); got != "" {
		t.Errorf("running the latest release should report nothing, got %q", got)
	}
	if *calls != 2 {
		t.Errorf("an answer cached for another version must not be reused, got %d calls", *calls)
	}
}

func TestChecker_OfflineRemembersMiss(t *testing.T) {
	c, calls, _ := fakeChecker(t, "1.1.0", "", errors.New("dial tcp: no route to host"))
	ctx := context.Background()

	if got := c.Check(ctx); got != "" {
		t.Errorf("Check() = %q, want empty", got)
	}
	c.Check(ctx)
	if *calls != 1 {
		t.Errorf("expected the miss to be cached, got %d calls", *calls)
	}
}

func TestChecker_DevBuild(t *testing.T) {
	c, calls, _ := fakeChecker(t, "dev", "9.9.9", nil)
	if got := c.Check(context.Background()); got != "" || *calls != 0 {
		t.Errorf("dev builds are never checked: got %q after %d calls", got, *calls)
	}
}

func TestChecker_CorruptState(t *testing.T) {
	c, calls, _ := fakeChecker(t, "1.1.0", "1.2.0", nil)
	if err := os.WriteFile(c.StatePath, []byte("not = [toml"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := c.Check(context.Background()); got != "1.2.0" || *calls != 1 {
		t.Errorf("a corrupt state file should be ignored: got %q after %d calls", got, *calls)
	}
}

func TestChecker_NoStatePath(t *testing.T) {
	c, calls, _ := fakeChecker(t, "1.1.0", "1.2.0", nil)
	c.StatePath = ""
	c.Check(context.Background())
	c.Check(context.Background())
	if *calls != 2 {
		t.Errorf("without a state file every check asks, got %d calls", *calls)
	}
}

func TestStartUpdateCheck_Disabled(t *testing.T) {
	t.Setenv(EnvNoUpdateCheck, "1")
	res, ok := <-StartUpdateCheck()
	if !ok || res.NewVersion != "" {
		t.Errorf("disabled check should send one empty result, got %+v ok=%v", res, ok)
	}
}

func TestUpdate_DevBuild(t *testing.T) {
	orig := Version
	Version = "dev"
	defer func() { Version = orig }()

	if _, err := Update(context.Background()); !errors.Is(err, ErrDevBuild) {
		t.Fatalf("expected ErrDevBuild, got %v", err)
	}
}

func TestFormatVersion(t *testing.T) {
	dev := formatVersion(BuildInfo{Version: "dev", Commit: "abc1234", GoVersion: "go1.24", Platform: "linux/amd64"})
	if !strings.HasPrefix(dev, "planmyday dev (abc1234)") {
		t.Errorf("unexpected dev version string: %q", dev)
	}
	if strings.Contains(dev, "built on") {
		t.Errorf("dev build should not report a build date: %q", dev)
	}

	rel := formatVersion(BuildInfo{Version: "1.4.0", Commit: "def4567", Date: "2026-01-02", Dirty: true, GoVersion: "go1.24", Platform: "darwin/arm64"})
	if !strings.Contains(rel, "(def4567-dirty) built on 2026-01-02") {
		t.Errorf("unexpected release version string: %q", rel)
	}
}

func TestWithVCS(t *testing.T) {
	info := withVCS(BuildInfo{Commit: "unknown", Date: "unknown"}, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	if info.Commit != "0123456" || info.Date != "2026-02-03T04:05:06Z" || !info.Dirty {
		t.Errorf("unexpected info %+v", info)
	}

	pinned := withVCS(BuildInfo{Commit: "release", Date: "2026-01-01"}, []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}})
	if pinned.Commit != "release" {
		t.Errorf("ldflags values win over VCS settings, got %q", pinned.Commit)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "planmyday-cli/") {
		t.Errorf("unexpected user agent %q", ua)
	}
}
