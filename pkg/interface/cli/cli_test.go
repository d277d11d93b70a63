package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/sirupsen/logrus"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Setenv("LOGODEV_API_KEY", "secret")
	t.Setenv("RELAY_URL", "")

	cfg, err := parseArgs([]string{"-i", "domains.txt"})
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}

	if cfg.NumWorkers != 5 {
		t.Errorf("NumWorkers = %d, want 5", cfg.NumWorkers)
	}
	if cfg.DwellDuration != 4*time.Minute {
		t.Errorf("DwellDuration = %s, want 4m", cfg.DwellDuration)
	}
	if cfg.RelayTimeoutDuration != 60*time.Second || cfg.BrowserTimeoutDuration != 20*time.Second {
		t.Errorf("timeouts = %s / %s", cfg.RelayTimeoutDuration, cfg.BrowserTimeoutDuration)
	}
	if cfg.RetryBudget != 3 || cfg.BackoffBase != 2 {
		t.Errorf("retry = %d / %g", cfg.RetryBudget, cfg.BackoffBase)
	}
	if cfg.DirectoryToken != "secret" {
		t.Errorf("DirectoryToken = %q, want value from env", cfg.DirectoryToken)
	}
	if cfg.StateDir != cfg.OutputDir {
		t.Errorf("StateDir = %q, want output dir %q", cfg.StateDir, cfg.OutputDir)
	}
	if cfg.RelayConcurrency != 5 {
		t.Errorf("RelayConcurrency = %d, want workers", cfg.RelayConcurrency)
	}
	if got := cfg.statePath("ledger.db"); got != filepath.Join("logos", "ledger.db") {
		t.Errorf("statePath() = %q", got)
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero workers", []string{"--workers", "0"}},
		{"zero budget", []string{"--retry-budget", "0"}},
		{"negative dwell", []string{"--dwell=-1"}},
		{"both resets", []string{"--reset", "--reset-not-found"}},
		{"both presenters", []string{"--dashboard", "--progress"}},
		{"bad level", []string{"--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseArgs(tt.args); err == nil {
				t.Errorf("parseArgs(%v) should fail", tt.args)
			}
		})
	}
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
		want   []entity.Target
	}{
		{
			name:   "json array",
			format: FormatJSON,
			input:  `[{"domain":"example.com","logo_url":"//logo.clearbit.com/example.com"},{"domain":"blocked.com","logo_url":"NO_LOGO_FOUND"}]`,
			want: []entity.Target{
				{Domain: "example.com", Reference: "//logo.clearbit.com/example.com"},
				{Domain: "blocked.com"},
			},
		},
		{
			name:  "sniffed jsonl",
			input: "\n{\"domain\":\"retailer.co.uk\",\"logo_url\":\"/static/logo.svg\"}\n{\"domain\":\"noref.io\",\"logo_url\":null}\n",
			want: []entity.Target{
				{Domain: "retailer.co.uk", Reference: "/static/logo.svg"},
				{Domain: "noref.io"},
			},
		},
		{
			name:  "sniffed text",
			input: "# comment\nexample.com https://example.com/logo.png\n\n  blocked.com  \n",
			want: []entity.Target{
				{Domain: "example.com", Reference: "https://example.com/logo.png"},
				{Domain: "blocked.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargets(strings.NewReader(tt.input), tt.format)
			if err != nil {
				t.Fatalf("ParseTargets() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTargets() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTargets_BadJSONL(t *testing.T) {
	_, err := ParseTargets(strings.NewReader("{\"domain\":\"a.com\"}\n{broken\n"), FormatJSONL)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ParseTargets() error = %v, want line 2", err)
	}
}

func TestLoadTargets_ByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.json")
	if err := os.WriteFile(path, []byte(`[{"domain":"example.com"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets() error = %v", err)
	}
	if len(got) != 1 || got[0].Domain != "example.com" {
		t.Errorf("LoadTargets() = %+v", got)
	}
}

func TestAssembleUseCase(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "domains.txt")
	if err := os.WriteFile(input, []byte("example.com //logo.clearbit.com/example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseArgs([]string{
		"-i", input,
		"-o", filepath.Join(dir, "logos"),
		"--no-browser",
		"--metrics-addr", "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	assembler := NewAssembler(cfg, "run-1", logger)

	useCase, targets, err := assembler.AssembleUseCase()
	if err != nil {
		t.Fatalf("AssembleUseCase() error = %v", err)
	}
	defer useCase.Close()

	if len(targets) != 1 {
		t.Errorf("targets = %+v", targets)
	}
	if assembler.Exporter() == nil {
		t.Error("exporter should be created when a metrics address is set")
	}
	for _, name := range []string{"ledger.db", "results.jsonl", "attempts.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, "logos", name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestProgramVersion(t *testing.T) {
	v := ProgramVersion{Version: "1.2.0", CommitHash: "abc123"}
	if got := v.Short(); got != "v1.2.0-abc123" {
		t.Errorf("Short() = %q", got)
	}
	if !strings.Contains(v.String(), "Commit: abc123") {
		t.Errorf("String() = %q", v.String())
	}
}
