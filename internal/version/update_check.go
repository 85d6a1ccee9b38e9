package version

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"planmyday/internal/logger"

	"github.com/BurntSushi/toml"
	semver "github.com/Masterminds/semver/v3"
	selfupdate "github.com/creativeprojects/go-selfupdate"
)

// ReleaseSlug is the GitHub repository that publishes planmyday releases.
const ReleaseSlug = "planmyday/planmyday-cli"

// EnvNoUpdateCheck disables the background check when set to any value.
const EnvNoUpdateCheck = "PLANMYDAY_NO_UPDATE_CHECK"

const defaultCheckTTL = 24 * time.Hour

// ErrDevBuild is returned by Update for binaries built without a release version.
var ErrDevBuild = errors.New("cannot self-update a dev build; install a released version first")

// UpdateCheckResult holds the outcome of a background update check.
type UpdateCheckResult struct {
	NewVersion string // empty when up to date, skipped, or the check failed
}

// DetectFunc reports the newest published release.
type DetectFunc func(ctx context.Context) (latest string, found bool, err error)

// Checker answers "is there a newer release" at most once per TTL. The last
// answer is kept in a small TOML file next to the user config.
type Checker struct {
	Current   string
	StatePath string
	TTL       time.Duration
	Detect    DetectFunc
	Now       func() time.Time
}

type checkState struct {
	Latest      string    `toml:"latest"`
	CheckedWith string    `toml:"checked_with"`
	CheckedAt   time.Time `toml:"checked_at"`
}

// NewChecker returns a Checker for the running binary backed by GitHub releases.
func NewChecker() *Checker {
	return &Checker{
		Current:   GetShortVersion(),
		StatePath: statePath(),
		TTL:       defaultCheckTTL,
		Detect:    detectLatest,
		Now:       time.Now,
	}
}

// StartUpdateCheck runs a Checker in the background. The channel receives
// exactly one result.
func StartUpdateCheck() <-chan UpdateCheckResult {
	ch := make(chan UpdateCheckResult, 1)
	if os.Getenv(EnvNoUpdateCheck) != "" {
		ch <- UpdateCheckResult{}
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ch <- UpdateCheckResult{NewVersion: NewChecker().Check(ctx)}
	}()
	return ch
}

// Check returns the newer version, or "" when there is none or it cannot tell.
func (c *Checker) Check(ctx context.Context) string {
	if c.Current == "dev" {
		return ""
	}

	// A cached answer only counts for the version that asked.
	if st, ok := c.load(); ok && st.CheckedWith == c.Current {
		if isNewerThan(st.Latest, c.Current) {
			return st.Latest
		}
		return ""
	}

	latest, found, err := c.Detect(ctx)
	if err != nil || !found {
		if err != nil {
			logger.Debug("update check failed: %v", err)
		}
		// remember the miss so an offline machine is not probed on every run
		c.save(c.Current)
		return ""
	}
	c.save(latest)
	if isNewerThan(latest, c.Current) {
		return latest
	}
	return ""
}

func (c *Checker) load() (checkState, bool) {
	var st checkState
	if c.StatePath == "" {
		return st, false
	}
	if _, err := toml.DecodeFile(c.StatePath, &st); err != nil {
		return st, false
	}
	if c.Now().Sub(st.CheckedAt) > c.TTL {
		return st, false
	}
	return st, true
}

func (c *Checker) save(latest string) {
	if c.StatePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.StatePath), 0755); err != nil {
		return
	}
	f, err := os.Create(c.StatePath)
	if err != nil {
		logger.Debug("update state not saved: %v", err)
		return
	}
	defer f.Close()
	_ = toml.NewEncoder(f).Encode(checkState{Latest: latest, CheckedWith: c.Current, CheckedAt: c.Now()})
}

func statePath() string {
	if dir := os.Getenv("PLANMYDAY_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "update_check.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "planmyday", "update_check.toml")
}

func newUpdater() (*selfupdate.Updater, error) {
	// GITHUB_TOKEN lifts the anonymous rate limit when present.
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{APIToken: os.Getenv("GITHUB_TOKEN")})
	if err != nil {
		return nil, err
	}
	return selfupdate.NewUpdater(selfupdate.Config{
		Source:    source,
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
}

func detectLatest(ctx context.Context) (string, bool, error) {
	updater, err := newUpdater()
	if err != nil {
		return "", false, err
	}
	rel, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(ReleaseSlug))
	if err != nil || !found {
		return "", found, err
	}
	return rel.Version(), true, nil
}

// Update replaces the running binary with the latest release. It returns the
// installed version, or "" when already up to date.
func Update(ctx context.Context) (string, error) {
	current := GetShortVersion()
	if current == "dev" {
		return "", ErrDevBuild
	}

	updater, err := newUpdater()
	if err != nil {
		return "", errors.Join(errors.New("could not reach the release server"), err)
	}
	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(ReleaseSlug))
	switch {
	case err != nil:
		return "", errors.Join(errors.New("update check failed"), err)
	case !found:
		return "", errors.New("no release found for your OS/architecture")
	case latest.LessOrEqual(current):
		return "", nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", errors.Join(errors.New("could not locate the planmyday executable"), err)
	}
	logger.Info("updating %s -> %s", current, latest.Version())
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return "", errors.Join(errors.New("update failed"), err)
	}

	c := NewChecker()
	c.Current = latest.Version()
	c.save(latest.Version())
	return latest.Version(), nil
}

func isNewerThan(latest, current string) bool {
	lv, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return lv.GreaterThan(cv)
}
