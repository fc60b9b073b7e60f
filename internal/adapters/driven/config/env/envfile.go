package env

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// EnvFileVar names an explicit .env file to load first.
const EnvFileVar = "CONVOHARVEST_ENV_FILE"

// LoadEnvFileCandidates loads environment variables from known files:
// $CONVOHARVEST_ENV_FILE, ./.env, then ~/.convoharvest/env.
// Existing process env vars are never overridden, so earlier files win.
func LoadEnvFileCandidates() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv(EnvFileVar)); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, ".env")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".convoharvest", "env"))
	}

	seen := map[string]struct{}{}
	for _, p := range candidates {
		abs := p
		if resolved, err := filepath.Abs(p); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		_ = LoadEnvFile(abs)
	}
}

// LoadEnvFile sets variables from a KEY=VALUE file. Blank lines, comments
// and an optional "export " prefix are accepted; set variables are kept.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		i := strings.IndexRune(line, '=')
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, trimOptionalQuotes(strings.TrimSpace(line[i+1:])))
	}
	return sc.Err()
}

func trimOptionalQuotes(v string) string {
	if len(v) < 2 {
		return v
	}
	if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}
