// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/ssh"

	"github.com/staranto/cofgo/internal/errs"
)

// Connection modes.
const (
	Direct = "direct"
	SSH    = "ssh"
)

// Config describes how to reach a database.
type Config struct {
	Engine   Engine
	Host     string
	Port     int
	User     string
	Password string
	// Database is the database name, or the file path for SQLite.
	Database string
	// Connection is Direct or SSH.
	Connection string
	SSH        SSHConfig
}

// SSHConfig describes the jump host of an SSH connection. The jump host is
// the database host; the tunnel forwards to RemoteHost:Port on its side.
type SSHConfig struct {
	User     string
	Password string
	KeyFile  string
	Port     int
	// RemoteHost is the database address as seen from the jump host.
	RemoteHost string
	// HostKeyCallback overrides known_hosts verification.
	HostKeyCallback ssh.HostKeyCallback
}

// CredentialsPath resolves a credentials file name. Names containing a path
// separator are used as is; bare names live in COF_CREDENTIALS_DIR, or in
// ~/.cof when that is unset.
func CredentialsPath(name string) string {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		return name
	}
	if dir, ok := os.LookupEnv("COF_CREDENTIALS_DIR"); ok && dir != "" {
		return filepath.Join(dir, name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".cof", name)
}

// LoadCredentials reads a JSON credentials file such as
//
//	{"DB_ENGINE": "postgres", "DB_HOST": "db.example.com", "DB_PORT": 5432,
//	 "DB_USER": "me", "DB_PASSWORD": "secret", "DB_DATABASE": "prod"}
//
// The engine may be left out and set by the caller before Open.
func LoadCredentials(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errs.Config("cannot read credentials %q: %v", path, err)
	}
	return ParseCredentials(b)
}

// ParseCredentials parses the JSON body of a credentials file.
func ParseCredentials(b []byte) (Config, error) {
	if !gjson.ValidBytes(b) {
		return Config{}, errs.Config("credentials are not valid JSON")
	}
	doc := gjson.ParseBytes(b)

	cfg := Config{
		Host:       doc.Get("DB_HOST").String(),
		Port:       int(doc.Get("DB_PORT").Int()),
		User:       doc.Get("DB_USER").String(),
		Password:   doc.Get("DB_PASSWORD").String(),
		Database:   doc.Get("DB_DATABASE").String(),
		Connection: strings.ToLower(doc.Get("CONNECTION").String()),
		SSH: SSHConfig{
			User:       doc.Get("SSH_USER").String(),
			Password:   doc.Get("SSH_PASSWORD").String(),
			KeyFile:    doc.Get("SSH_KEY").String(),
			Port:       int(doc.Get("SSH_PORT").Int()),
			RemoteHost: doc.Get("SSH_REMOTE_HOST").String(),
		},
	}

	if e := doc.Get("DB_ENGINE").String(); e != "" {
		engine, err := ParseEngine(e)
		if err != nil {
			return Config{}, err
		}
		cfg.Engine = engine
	}
	return cfg, nil
}

// Validate checks that cfg names an engine and a target.
func (c Config) Validate() error {
	if c.Engine == 0 {
		return errs.Config("no engine configured, expected postgres, mysql or sqlite")
	}
	switch c.Connection {
	case "", Direct, SSH:
	default:
		return errs.Config("unknown connection %q, expected direct or ssh", c.Connection)
	}
	if c.Engine == SQLite {
		if c.Database == "" {
			return errs.Config("sqlite needs a database file")
		}
		if c.Connection == SSH {
			return errs.Config("sqlite cannot be reached over ssh")
		}
		return nil
	}
	if c.Host == "" {
		return errs.Config("no host configured for %s", c.Engine)
	}
	return nil
}

func (c Config) port() int {
	if c.Port > 0 {
		return c.Port
	}
	return c.Engine.DefaultPort()
}

// Addr is host:port of the server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.port()))
}

// DSN is the data source name handed to the engine's driver.
func (c Config) DSN() string {
	switch c.Engine {
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   c.Addr(),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			if c.Password != "" {
				u.User = url.UserPassword(c.User, c.Password)
			} else {
				u.User = url.User(c.User)
			}
		}
		return u.String()
	case MySQL:
		m := mysql.NewConfig()
		m.User = c.User
		m.Passwd = c.Password
		m.Net = "tcp"
		m.Addr = c.Addr()
		m.DBName = c.Database
		m.ParseTime = true
		return m.FormatDSN()
	case SQLite:
		return c.Database
	default:
		return ""
	}
}
