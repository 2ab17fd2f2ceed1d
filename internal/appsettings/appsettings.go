// Package appsettings defines the settings schema managed by the keepconf
// command: authentication and database sections with their defaults.
package appsettings

import (
	"errors"
	"fmt"

	"github.com/thirteen37/keepconf/internal/settings"
)

// DefaultPath is used when no settings path is given.
const DefaultPath = "backend-config.yaml"

// Database types understood by Validate.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
	DatabaseMSSQL  = "mssql"
)

// AppSettings is the root of the settings file.
type AppSettings struct {
	Auth     AuthSettings     `settings:"auth"`
	Database DatabaseSettings `settings:"database"`
}

// AuthSettings configures token signing and the LDAP directory.
type AuthSettings struct {
	SecretKey                string            `settings:"secret_key"`
	Algorithm                string            `settings:"algorithm"`
	AccessTokenExpireMinutes int               `settings:"access_token_expire_minutes"`
	Domain                   string            `settings:"domain"`
	LDAPServer               string            `settings:"ldap_server"`
	LDAPBaseDN               string            `settings:"ldap_base_dn"`
	Scopes                   map[string]string `settings:"scopes"`
}

// DatabaseSettings configures the database connection.
type DatabaseSettings struct {
	Type           string `settings:"database_type"`
	Driver         string `settings:"database_driver"`
	Name           string `settings:"db_name"`
	Host           string `settings:"host"`
	User           string `settings:"user"`
	Password       string `settings:"password"`
	Port           int    `settings:"port"`
	Timeout        int    `settings:"timeout"`
	UseSSL         bool   `settings:"use_ssl"`
	SSLCertFile    string `settings:"ssl_cert_file"`
	SSLKeyFile     string `settings:"ssl_key_file"`
	SSLCACertFile  string `settings:"ssl_ca_cert_file"`
	MaxConnections int    `settings:"max_connections"`
	MinConnections int    `settings:"min_connections"`
}

// Defaults returns a fresh copy of the default settings.
func Defaults() AppSettings {
	return AppSettings{
		Auth: AuthSettings{
			SecretKey:                "CHANGE_ME",
			Algorithm:                "HS256",
			AccessTokenExpireMinutes: 30,
			Domain:                   "localhost",
			LDAPServer:               "ldap://localhost:389",
			LDAPBaseDN:               "dc=example,dc=com",
			Scopes: map[string]string{
				"student": "student",
				"teacher": "teacher",
				"admin":   "admin",
			},
		},
		Database: DatabaseSettings{
			Type:           DatabaseSQLite,
			Name:           "backend.db",
			Host:           "localhost",
			Timeout:        30,
			MaxConnections: 10,
			MinConnections: 1,
		},
	}
}

// Open creates a settings manager for AppSettings.
func Open(opts settings.Options) (*settings.Manager[AppSettings], error) {
	if opts.Path == "" && opts.ReadPath == "" && opts.WritePath == "" {
		opts.Path = DefaultPath
	}
	return settings.NewStruct(Defaults(), opts)
}

// Validate checks the values the schema alone cannot express.
func (s AppSettings) Validate() error {
	var errs []error

	switch s.Database.Type {
	case DatabaseSQLite, DatabaseMySQL, DatabaseMSSQL:
	default:
		errs = append(errs, fmt.Errorf("database.database_type: unsupported database type %q", s.Database.Type))
	}
	if s.Database.MinConnections > s.Database.MaxConnections {
		errs = append(errs, fmt.Errorf("database.min_connections (%d) exceeds max_connections (%d)",
			s.Database.MinConnections, s.Database.MaxConnections))
	}
	if s.Database.UseSSL && s.Database.SSLCACertFile == "" {
		errs = append(errs, errors.New("database.ssl_ca_cert_file is required when use_ssl is set"))
	}
	if s.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key must be set"))
	}
	if s.Auth.AccessTokenExpireMinutes <= 0 {
		errs = append(errs, errors.New("auth.access_token_expire_minutes must be positive"))
	}

	return errors.Join(errs...)
}
