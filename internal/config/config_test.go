package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("MONGO_URI", "")
	t.Setenv("TZ", "UTC")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "junks", cfg.MongoDB)
	assert.Equal(t, 15, cfg.AccessTTLMinutes)
	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.ErrorIs(t, cfg.StoreConfigured(), ErrStoreNotConfigured)
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("TZ", "UTC")
	t.Setenv("MONGO_DB", "")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=mongo\nMONGO_URI=mongodb://localhost:27017/junks_test\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("MONGO_URI")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "junks_test", cfg.MongoDB)
	assert.NoError(t, cfg.StoreConfigured())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestStoreConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{StoreDriver: StoreMemory}, true},
		{"firestore without project", Config{StoreDriver: StoreFirestore}, false},
		{"firestore", Config{StoreDriver: StoreFirestore, FirestoreProjectID: "junks"}, true},
		{"unknown driver", Config{StoreDriver: "sqlite"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.StoreConfigured()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrStoreNotConfigured)
			}
		})
	}
}
