package ctl

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	ccx "github.com/goliatone/go-ccx"
	"github.com/goliatone/go-ccx/pkg/rules"
)

type cli struct {
	t    *testing.T
	path string
}

func newCLI(t *testing.T) cli {
	return cli{t: t, path: t.TempDir()}
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--store", StoreBadger, "--badger-path", c.path)
	err := Execute(context.Background(), args, &stdout, &stderr)
	return strings.TrimSpace(stdout.String()), err
}

func TestSetGetListClear(t *testing.T) {
	c := newCLI(t)
	target := []string{"--cohort", "C1", "--location", "loc1"}

	out, err := c.run(append([]string{"get", "--field", "due"}, target...)...)
	if err != nil || out != "null" {
		t.Fatalf("expected null before set, got %q (%v)", out, err)
	}

	out, err = c.run(append([]string{"set", "--field", "due", "--value", `"2024-05-01"`}, target...)...)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if out != `"2024-05-01T00:00:00Z"` {
		t.Fatalf("expected normalized date, got %q", out)
	}
	if _, err := c.run(append([]string{"set", "--field", "graded", "--value", "false"}, target...)...); err != nil {
		t.Fatalf("set graded: %v", err)
	}

	out, err = c.run(append([]string{"list"}, target...)...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, `"due": "2024-05-01T00:00:00Z"`) || !strings.Contains(out, `"graded": false`) {
		t.Fatalf("unexpected list output %s", out)
	}

	if _, err := c.run(append([]string{"clear", "--field", "due"}, target...)...); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := c.run(append([]string{"clear", "--field", "due"}, target...)...); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	out, err = c.run(append([]string{"get", "--field", "due"}, target...)...)
	if err != nil || out != "null" {
		t.Fatalf("expected null after clear, got %q (%v)", out, err)
	}
}

func TestSetRejectsFieldsOutsidePolicy(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("set", "--cohort", "C1", "--location", "loc1", "--field", "graded", "--value", "true",
		"--policy-expression", `field == "due"`)
	if !errors.Is(err, ccx.ErrFieldNotOverridable) {
		t.Fatalf("expected ErrFieldNotOverridable, got %v", err)
	}

	_, err = c.run("set", "--cohort", "C1", "--location", "loc1", "--field", "display_name", "--value", `"x"`)
	if !errors.Is(err, ccx.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestPolicyExpressionsCallDateHelpers(t *testing.T) {
	c := newCLI(t)
	target := []string{"--cohort", "C1", "--location", "loc1"}
	policy := []string{"--policy-engine", "cel", "--policy-expression", `field == "due" && before(now, "2999-01-01")`}

	if _, err := c.run(append(append([]string{"set", "--field", "due", "--value", `"2024-05-01"`}, target...), policy...)...); err != nil {
		t.Fatalf("expected due allowed, got %v", err)
	}
	frozen := []string{"--policy-expression", `after(now, "2000-01-01") && field != "due"`}
	_, err := c.run(append(append([]string{"set", "--field", "due", "--value", `"2024-06-01"`}, target...), frozen...)...)
	if !errors.Is(err, ccx.ErrFieldNotOverridable) {
		t.Fatalf("expected ErrFieldNotOverridable, got %v", err)
	}
}

func TestPolicyCacheConfig(t *testing.T) {
	v := newViper()
	v.Set("policy.cache_ttl", "90s")
	v.Set("policy.cache_size", 4)
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Policy.CacheTTL != 90*time.Second || cfg.Policy.CacheSize != 4 {
		t.Fatalf("unexpected policy config %+v", cfg.Policy)
	}

	v = newViper()
	cfg, err = loadConfig(v)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Policy.CacheTTL != DefaultPolicyCacheTTL || cfg.Policy.CacheSize != DefaultPolicyCacheSize {
		t.Fatalf("expected cache defaults, got %+v", cfg.Policy)
	}

	v = newViper()
	v.Set("policy.cache_size", -1)
	if _, err := loadConfig(v); err == nil {
		t.Fatalf("expected negative cache size rejected")
	}
}

func TestBuildPolicy(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	policy, err := buildPolicy(PolicyConfig{}, logger)
	if err != nil {
		t.Fatalf("build default policy: %v", err)
	}
	if _, ok := policy.(ccx.FieldAllowList); !ok {
		t.Fatalf("expected default allow list, got %T", policy)
	}

	policy, err = buildPolicy(PolicyConfig{Engine: "expr", Expression: `days_between(now, value) > 1.0`, CacheTTL: time.Minute, CacheSize: 2}, logger)
	if err != nil {
		t.Fatalf("build expression policy: %v", err)
	}
	if _, ok := policy.(*rules.Policy); !ok {
		t.Fatalf("expected rules policy, got %T", policy)
	}
	ok, err := policy.AllowOverride(context.Background(), ccx.PolicyInput{
		Cohort: ccx.Cohort{ID: "C1"},
		Field:  "due",
		Value:  time.Now().Add(72 * time.Hour),
	})
	if err != nil || !ok {
		t.Fatalf("expected due three days out allowed, got %v (%v)", ok, err)
	}

	if _, err := buildPolicy(PolicyConfig{Engine: "lua", Expression: "true"}, logger); !errors.Is(err, rules.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestSetRequiresJSONValue(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("set", "--cohort", "C1", "--location", "loc1", "--field", "format", "--value", "Homework")
	if err == nil || !strings.Contains(err.Error(), "--value must be JSON") {
		t.Fatalf("expected JSON error, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), []string{"list", "--cohort", "C1", "--location", "loc1", "--store", "postgres", "--database-url", ""}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "database_url is required") {
		t.Fatalf("expected database_url error, got %v", err)
	}
	err = Execute(context.Background(), []string{"list", "--cohort", "C1", "--location", "loc1", "--store", "sqlite"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown store") {
		t.Fatalf("expected unknown store error, got %v", err)
	}
}

func TestMissingRequiredFlags(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("get", "--cohort", "C1"); err == nil {
		t.Fatalf("expected missing flag error")
	}
}
