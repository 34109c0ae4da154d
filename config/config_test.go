package config

import (
	"testing"

	"atelier-server-go/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 8, cfg.RedisDB)
	assert.Equal(t, "atelier:", cfg.RedisPrefix)
	assert.Equal(t, db.DriverSQLite, cfg.LocalStoreDriver)
	assert.Equal(t, "atelier.db", cfg.LocalStorePath)
	assert.Equal(t, "Classe 1", cfg.DefaultClassroomName)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"REDIS_DB":           "3",
		"LOCAL_STORE_DRIVER": "bolt",
		"LOCAL_STORE_PATH":   "/tmp/atelier.bolt",
		"LOG_FORMAT":         "json",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, db.DriverBolt, cfg.LocalStoreDriver)
	assert.Equal(t, "/tmp/atelier.bolt", cfg.LocalStorePath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"LOCAL_STORE_DRIVER": "etcd"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"REDIS_DB": "eight"})
	assert.Error(t, err)
}
