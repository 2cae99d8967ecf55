package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/betbot/celebsentry/pkg/secretstore"
	"github.com/joho/godotenv"
)

// 默认只导入通道凭据；-keys all 导入全部
const defaultKeys = "EMAIL_SENDER,EMAIL_PASSWORD,WEBHOOK_URL,DISCORD_WEBHOOK_URL"

func main() {
	var (
		inPath    = flag.String("in", ".env", "input .env file path")
		dbPath    = flag.String("badger", getenv("CELEB_SECRET_DB", "data/secrets.badger"), "badger secrets db path")
		secretKey = flag.String("secret-key", getenv("CELEB_SECRET_KEY", ""), "badger encryption key (32 bytes base64/hex)")
		prefix    = flag.String("prefix", getenv("CELEB_SECRET_PREFIX", "env/"), "key prefix inside badger")
		keys      = flag.String("keys", defaultKeys, "comma separated keys to import, or 'all'")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("secret key is required: set CELEB_SECRET_KEY or pass -secret-key"))
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}
	selected := selectKeys(kv, *keys)
	if len(selected) == 0 {
		fatal(fmt.Errorf("no matching keys in %s", *inPath))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
		Prefix:        *prefix,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	for _, k := range selected {
		if err := ss.SetString(k, kv[k]); err != nil {
			fatal(err)
		}
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 项到 badger：%s（前缀 %s）: %s\n", len(selected), *dbPath, *prefix, strings.Join(selected, ", "))
}

// selectKeys 返回需要导入且值非空的键（排序）
func selectKeys(kv map[string]string, keys string) []string {
	want := map[string]bool{}
	all := strings.TrimSpace(keys) == "all"
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			want[k] = true
		}
	}
	var out []string
	for k, v := range kv {
		if v == "" || (!all && !want[k]) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
