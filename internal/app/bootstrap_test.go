package app

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/betbot/celebsentry/pkg/secretstore"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesSecrets(t *testing.T) {
	for _, k := range []string{"WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "EMAIL_PASSWORD", "CELEB_SECRET_KEY", "CELEB_SECRET_DB"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "secrets.badger")
	key := []byte(strings.Repeat("k", 32))

	store, err := secretstore.Open(secretstore.OpenOptions{Path: dbPath, EncryptionKey: key, Prefix: "env/"})
	require.NoError(t, err)
	require.NoError(t, store.SetString("WEBHOOK_URL", "https://hooks.example.com/secret"))
	require.NoError(t, store.Close())

	cfgPath := filepath.Join(dir, "celeb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"secrets:\n  badger_path: "+dbPath+"\n  key: "+hex.EncodeToString(key)+"\n"), 0o644))

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "https://hooks.example.com/secret", cfg.Webhook.URL)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsBadKey(t *testing.T) {
	t.Setenv("CELEB_SECRET_KEY", "")
	cfgPath := filepath.Join(t.TempDir(), "celeb.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("secrets:\n  badger_path: x\n  key: nope!\n"), 0o644))
	_, err := LoadConfig(cfgPath)
	require.Error(t, err)
}

func TestNewClientWiresPacer(t *testing.T) {
	client, pacer := NewClient(time.Second, 0, "ua")
	require.NotNil(t, client)
	require.Equal(t, time.Duration(0), pacer.Delay())
}

func TestResolveConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())
	require.Equal(t, "custom.yaml", ResolveConfigPath(" custom.yaml "))
	require.Equal(t, "", ResolveConfigPath(""), "默认配置文件不存在时只用环境变量")

	require.NoError(t, os.MkdirAll("yml", 0o755))
	require.NoError(t, os.WriteFile(DefaultConfigPath, []byte("source: markets\n"), 0o644))
	require.Equal(t, DefaultConfigPath, ResolveConfigPath(""))
}
