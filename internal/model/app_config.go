package model

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const DefaultDBPort = 3306

// AppConfig is the first-run setup data persisted to config.json.
type AppConfig struct {
	DBHost     string `json:"dbHost"`
	DBPort     int    `json:"dbPort"`
	DBName     string `json:"dbName"`
	DBUser     string `json:"dbUser"`
	DBPassword string `json:"dbPassword"`
}

// NewAppConfig returns an AppConfig with defaults applied, ready to be decoded into.
func NewAppConfig() *AppConfig {
	return &AppConfig{DBPort: DefaultDBPort}
}

// IsComplete reports whether host, database name and user are all set.
// A nil config is never complete.
func (c *AppConfig) IsComplete() bool {
	return c != nil &&
		strings.TrimSpace(c.DBHost) != "" &&
		strings.TrimSpace(c.DBName) != "" &&
		strings.TrimSpace(c.DBUser) != ""
}

// DSN formats the settings as a MySQL data source name.
func (c *AppConfig) DSN() string {
	port := c.DBPort
	if port == 0 {
		port = DefaultDBPort
	}

	cfg := mysql.NewConfig()
	cfg.User = c.DBUser
	cfg.Passwd = c.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.DBHost, strconv.Itoa(port))
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
