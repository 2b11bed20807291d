// Package spy checks whether a username exists across external sites by
// running the Sherlock tool.
package spy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/socialspy/internal/logging"
)

const (
	defaultBinary      = "sherlock"
	defaultPython      = "python3"
	defaultTimeout     = 5 * time.Minute
	defaultSiteTimeout = 20
	sherlockModule     = "sherlock_project"
)

// execCommandContext allows mocking exec.CommandContext in tests
var execCommandContext = exec.CommandContext

var (
	ansiRe     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)
)

// SiteResult is the probe result for one site. URL is nil when the
// username was not found.
type SiteResult struct {
	Found bool    `json:"found"`
	URL   *string `json:"url"`
}

// Result is the output of one probe.
type Result struct {
	Username string                `json:"username"`
	Sites    map[string]SiteResult `json:"sites"`
	ProbedAt time.Time             `json:"probed_at"`
	Command  string                `json:"command"`
	Raw      string                `json:"-"`
}

// Found returns the sites where the username exists, sorted by name.
func (r Result) Found() []string {
	var sites []string
	for name, s := range r.Sites {
		if s.Found {
			sites = append(sites, name)
		}
	}
	sort.Strings(sites)
	return sites
}

// Prober checks username presence across sites.
type Prober interface {
	Probe(ctx context.Context, username string) (Result, error)
}

// Sherlock runs the sherlock CLI, falling back to the Python module when
// the binary is unavailable.
type Sherlock struct {
	binary      string
	python      string
	timeout     time.Duration
	siteTimeout int
	logger      logging.Logger
}

// NewSherlock creates a prober. Empty values select the defaults.
func NewSherlock(binary, python string, timeout time.Duration, logger logging.Logger) *Sherlock {
	if strings.TrimSpace(binary) == "" {
		binary = defaultBinary
	}
	if strings.TrimSpace(python) == "" {
		python = defaultPython
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sherlock{
		binary:      binary,
		python:      python,
		timeout:     timeout,
		siteTimeout: defaultSiteTimeout,
		logger:      logging.OrDiscard(logger),
	}
}

// ValidateUsername rejects values that are empty or could be read as flags.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	if !usernameRe.MatchString(username) || strings.HasPrefix(username, "-") {
		return fmt.Errorf("invalid username %q", username)
	}
	return nil
}

// Probe runs sherlock for username and parses its report.
func (s *Sherlock) Probe(ctx context.Context, username string) (Result, error) {
	if err := ValidateUsername(username); err != nil {
		return Result{}, fmt.Errorf("sherlock: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{"--print-all", "--no-color", "--timeout", fmt.Sprint(s.siteTimeout), username}
	attempts := [][]string{
		append([]string{s.binary}, args...),
		append([]string{s.python, "-m", sherlockModule}, args...),
	}

	var errs []error
	for _, argv := range attempts {
		out, err := s.run(ctx, argv[0], argv[1:])
		if err != nil {
			s.logger.WithFields(logging.Fields{"command": argv[0], "error": err.Error()}).Debug("sherlock attempt failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return Result{
			Username: username,
			Sites:    Parse(out),
			ProbedAt: time.Now().UTC(),
			Command:  strings.Join(argv[:len(argv)-len(args)], " "),
			Raw:      out,
		}, nil
	}
	return Result{}, fmt.Errorf("sherlock: %w", errors.Join(errs...))
}

// run executes one command in a scratch directory so sherlock's own
// <username>.txt report does not land in the caller's working directory.
func (s *Sherlock) run(ctx context.Context, name string, args []string) (string, error) {
	dir, err := os.MkdirTemp("", "socialspy-sherlock-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found: install sherlock (pip install sherlock-project)", name)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s failed: %s", name, msg)
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.String(), nil
}

// Available reports which sherlock entry point can be found on PATH.
func (s *Sherlock) Available() (string, bool) {
	if path, err := exec.LookPath(s.binary); err == nil {
		return path, true
	}
	if _, err := exec.LookPath(s.python); err == nil {
		check := execCommandContext(context.Background(), s.python, "-c", "import "+sherlockModule)
		if check.Run() == nil {
			return s.python + " -m " + sherlockModule, true
		}
	}
	return "", false
}

// Parse extracts per-site results from sherlock output.
//
//	[+] GitHub: https://www.github.com/user
//	[-] Pinterest: Not Found!
//
// Other lines are ignored.
func Parse(output string) map[string]SiteResult {
	sites := make(map[string]SiteResult)
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(ansiRe.ReplaceAllString(scanner.Text(), ""))
		var found bool
		switch {
		case strings.HasPrefix(line, "[+]"):
			found = true
		case strings.HasPrefix(line, "[-]"):
			found = false
		default:
			continue
		}

		site, rest, ok := strings.Cut(strings.TrimSpace(line[3:]), ": ")
		site = strings.TrimSpace(site)
		if !ok || site == "" {
			continue
		}
		res := SiteResult{Found: found}
		if found {
			u := strings.TrimSpace(rest)
			if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
				res.URL = &u
			}
		}
		sites[site] = res
	}
	return sites
}
