package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surrealdb/surrealdb.go"
)

func TestConfigAuth(t *testing.T) {
	cfg := Config{Namespace: "mooddine", Database: "quota", Username: "u", Password: "p"}

	cfg.AuthLevel = "root"
	assert.Equal(t, surrealdb.Auth{Username: "u", Password: "p"}, cfg.auth())

	cfg.AuthLevel = "database"
	assert.Equal(t, surrealdb.Auth{Namespace: "mooddine", Database: "quota", Username: "u", Password: "p"}, cfg.auth())
}
