// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  host: "0.0.0.0"
  port: 8080
  dry_run: false
cloudflare:
  base_url: "https://api.cloudflare.com/client/v4"
  account_id: "acct1"
  zone_id: "zone1"
  token: "secret"
  invalidation_timeout: "60s"
db:
  user: "firewall"
  password: "pw"
  db: "firewall_executor"
  host: "localhost"
  port: 5432
tracing:
  svc_name: "firewall-executor"
  jaeger_endpoint: "http://localhost:14268/api/traces"
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "zone1", cfg.Cloudflare.ZoneID)
	assert.Equal(t, "firewall_executor", cfg.DB.DB)
	assert.Equal(t, "firewall-executor", cfg.Tracing.ServiceName)

	timeout, err := cfg.Cloudflare.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, timeout)
}

func TestTimeoutDefaultsTo10s(t *testing.T) {
	var c Cloudflare
	d, err := c.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
