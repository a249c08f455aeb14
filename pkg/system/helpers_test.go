package system

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/arc-language/aspkg/pkg/archive"
	"github.com/arc-language/aspkg/pkg/asp"
	"github.com/arc-language/aspkg/pkg/elfscan/elfscantest"
)

func newTestManager(t *testing.T, mutate ...func(*Config)) *Manager {
	t.Helper()
	cfg := &Config{
		Basedir:         t.TempDir(),
		ElfReader:       elfscantest.Reader{},
		HookInterpreter: "/bin/sh",
		HookTimeout:     10 * time.Second,
		LockTimeout:     200 * time.Millisecond,
		OwnerUID:        os.Getuid(),
		OwnerGID:        os.Getgid(),
		Metrics:         NewMetrics(WithRegistry(prometheus.NewRegistry())),
	}
	for _, fn := range mutate {
		fn(cfg)
	}
	return NewManager(cfg)
}

// buildASP packs files (rooted path -> contents) into an ASP called name
func buildASP(t *testing.T, name string, files map[string][]byte, mutate ...func(*asp.Builder)) string {
	t.Helper()
	destdir := t.TempDir()
	for p, body := range files {
		full := filepath.Join(destdir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, body, 0644); err != nil {
			t.Fatal(err)
		}
	}

	b := &asp.Builder{DestDir: destdir}
	for _, fn := range mutate {
		fn(b)
	}
	out := filepath.Join(t.TempDir(), name)
	if _, err := b.Build(out); err != nil {
		t.Fatalf("Build(%s) error = %v", name, err)
	}
	return out
}

// withSymlink adds a link at rooted pointing to target to the packaged tree
func withSymlink(t *testing.T, rooted, target string) func(*asp.Builder) {
	return func(b *asp.Builder) {
		full := filepath.Join(b.DestDir, filepath.FromSlash(rooted))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(target, full); err != nil {
			t.Fatal(err)
		}
	}
}

// writeContainer writes an ASP from raw members, for packages the Builder
// refuses to produce
func writeContainer(t *testing.T, name string, members map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for member, data := range members {
		if err := tw.WriteHeader(&tar.Header{
			Name: "./" + member, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(data)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return out
}

func xzData(t *testing.T, plain []byte) []byte {
	t.Helper()
	data, err := archive.Compress(plain, archive.XZ)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func writeFile(t *testing.T, m *Manager, rooted string, body []byte) {
	t.Helper()
	full := filepath.Join(m.Basedir(), filepath.FromSlash(rooted))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, body, 0644); err != nil {
		t.Fatal(err)
	}
}

func exists(m *Manager, rooted string) bool {
	_, err := os.Lstat(filepath.Join(m.Basedir(), filepath.FromSlash(rooted)))
	return err == nil
}

func mustInstall(t *testing.T, m *Manager, path string) *InstallResult {
	t.Helper()
	res, err := m.Install(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Install(%s) error = %v", filepath.Base(path), err)
	}
	return res
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}
