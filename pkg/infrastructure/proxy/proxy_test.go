package proxy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

func testProxies() []entity.Proxy {
	return []entity.Proxy{
		{Server: "http://us1:8080", Country: "US"},
		{Server: "http://gb1:8080", Country: "gb"},
		{Server: "http://de1:8080", Country: "DE"},
		{Server: "http://gb2:8080", Country: "GB"},
		{Server: "http://us2:8080", Country: "US"},
	}
}

func TestPool_OrderSameCountryFirst(t *testing.T) {
	pool := NewPool(testProxies())

	for i := 0; i < 20; i++ {
		ordered := pool.Order("GB")
		if len(ordered) != 5 {
			t.Fatalf("len(Order) = %d, want 5", len(ordered))
		}
		for j, p := range ordered[:2] {
			if p.Country != "GB" {
				t.Fatalf("ordered[%d] = %s (%s), want GB first", j, p.Server, p.Country)
			}
		}
		seen := make(map[string]bool)
		for _, p := range ordered {
			if seen[p.Server] {
				t.Fatalf("proxy %s repeated", p.Server)
			}
			seen[p.Server] = true
		}
	}
}

func TestPool_OrderDoesNotMutatePool(t *testing.T) {
	pool := NewPool(testProxies())
	pool.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	first := pool.Order("US")
	first[0].Server = "mutated"

	second := pool.Order("US")
	if second[0].Server != "http://us2:8080" || second[1].Server != "http://us1:8080" {
		t.Errorf("Order(US) = %v", second)
	}
	if pool.proxies[0].Server != "http://us1:8080" {
		t.Errorf("pool mutated: %v", pool.proxies)
	}
}

func TestPool_UnknownCountry(t *testing.T) {
	pool := NewPool(testProxies())
	if got := len(pool.ByCountry("FR")); got != 0 {
		t.Errorf("ByCountry(FR) = %d proxies, want 0", got)
	}
	if got := len(pool.Order("FR")); got != 5 {
		t.Errorf("Order(FR) = %d proxies, want 5", got)
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(nil)
	if pool.Len() != 0 || len(pool.Order("US")) != 0 {
		t.Error("empty pool should yield no proxies")
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.json")
	content := `[{"server":"http://1.2.3.4:8080","username":"u","password":"p","country":"GB"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	proxies, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(proxies) != 1 || proxies[0].Username != "u" || proxies[0].Country != "GB" {
		t.Errorf("Load() = %+v", proxies)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.toml")
	content := `
[[proxy]]
server = "http://1.2.3.4:8080"
country = "US"

[[proxy]]
server = "socks5://5.6.7.8:1080"
username = "alice"
password = "secret"
country = "DE"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	proxies, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(proxies) != 2 || proxies[1].Password != "secret" || proxies[1].Country != "DE" {
		t.Errorf("Load() = %+v", proxies)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	missingServer := filepath.Join(dir, "bad.json")
	os.WriteFile(missingServer, []byte(`[{"country":"US"}]`), 0644)

	for _, path := range []string{missingServer, filepath.Join(dir, "missing.json")} {
		if _, err := Load(path); err == nil {
			t.Errorf("Load(%s) expected error", path)
		}
	}
}
