package util

import (
	"strings"

	"github.com/spf13/viper"
)

// SetKeyValue sets a config key from an environment variable name. The
// prefix up to the first underscore is dropped and the rest is matched
// against the known keys, so MB_DATABASE_DBNAME sets database.dbname.
func SetKeyValue(vi *viper.Viper, key string, value string) bool {
	if i := strings.IndexByte(key, '_'); i != -1 {
		key = key[i+1:]
	}
	key = strings.ToLower(key)

	for _, k := range vi.AllKeys() {
		if strings.ReplaceAll(k, ".", "_") == key {
			vi.Set(k, value)
			return true
		}
	}
	return false
}
