package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		Port:     "5432",
		User:     "resourcee",
		Password: "pw",
		Database: "resourcee",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://resourcee:pw@localhost:5432/resourcee?sslmode=disable", cfg.DSN())
}

func TestPlaceholderRow(t *testing.T) {
	assert.Equal(t, "($1, $2, $3)", placeholderRow(0, 3))
	assert.Equal(t, "($4, $5, $6)", placeholderRow(1, 3))
	assert.Equal(t, "($11, $12, $13, $14, $15)", placeholderRow(2, 5))
}
