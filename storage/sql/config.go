package sql

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// NetworkDB holds options common to SQL databases accessed over the
// network.
type NetworkDB struct {
	Database string
	User     string
	Password string
	Host     string
	Port     uint16

	ConnectionTimeout int // seconds

	MaxOpenConns    int // default: 5
	MaxIdleConns    int // default: 5
	ConnMaxLifetime int // seconds, default: unset
}

// SSL represents SSL options for network databases.
type SSL struct {
	Mode     string
	CAFile   string
	KeyFile  string
	CertFile string
}

// Postgres options for creating a Postgres-backed storage.Storage, the
// production backend.
type Postgres struct {
	NetworkDB
	SSL SSL `json:"ssl" yaml:"ssl"`
}

// Open creates a new storage.Storage backed by Postgres.
func (p *Postgres) Open(logger log.Logger) (storage.Storage, error) {
	return p.open(logger)
}

var strEsc = regexp.MustCompile(`([\\'])`)

func dataSourceStr(str string) string {
	return "'" + strEsc.ReplaceAllString(str, `\$1`) + "'"
}

func (p *Postgres) createDataSourceName() string {
	var parameters []string
	addParam := func(key, val string) {
		parameters = append(parameters, fmt.Sprintf("%s=%s", key, val))
	}

	addParam("connect_timeout", strconv.Itoa(p.ConnectionTimeout))

	host, port, err := net.SplitHostPort(p.Host)
	if err != nil {
		host = p.Host
		if p.Port != 0 {
			port = strconv.Itoa(int(p.Port))
		}
	}
	if host != "" {
		addParam("host", dataSourceStr(host))
	}
	if port != "" {
		addParam("port", port)
	}
	if p.User != "" {
		addParam("user", dataSourceStr(p.User))
	}
	if p.Password != "" {
		addParam("password", dataSourceStr(p.Password))
	}
	if p.Database != "" {
		addParam("dbname", dataSourceStr(p.Database))
	}
	if p.SSL.Mode == "" {
		addParam("sslmode", dataSourceStr("verify-full"))
	} else {
		addParam("sslmode", dataSourceStr(p.SSL.Mode))
	}
	if p.SSL.CAFile != "" {
		addParam("sslrootcert", dataSourceStr(p.SSL.CAFile))
	}
	if p.SSL.CertFile != "" {
		addParam("sslcert", dataSourceStr(p.SSL.CertFile))
	}
	if p.SSL.KeyFile != "" {
		addParam("sslkey", dataSourceStr(p.SSL.KeyFile))
	}
	return strings.Join(parameters, " ")
}

func (p *Postgres) open(logger log.Logger) (*conn, error) {
	db, err := sql.Open("postgres", p.createDataSourceName())
	if err != nil {
		return nil, err
	}

	if p.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(time.Duration(p.ConnMaxLifetime) * time.Second)
	}
	if p.MaxIdleConns == 0 {
		db.SetMaxIdleConns(5)
	} else {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.MaxOpenConns == 0 {
		db.SetMaxOpenConns(5)
	} else {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}

	errCheck := func(err error) bool {
		return strings.Contains(err.Error(), "duplicate key value")
	}

	c := &conn{db, flavorPostgres, errCheck}
	if n, err := c.migrate(); err != nil {
		return nil, fmt.Errorf("failed to perform migrations: %v", err)
	} else if n > 0 {
		logger.Infof("applied %d migrations", n)
	}
	return c, nil
}

// SQLite options for creating a SQLite-backed storage.Storage, the
// single-process development backend.
type SQLite struct {
	File string
}

// Open creates a new storage.Storage backed by SQLite.
func (s *SQLite) Open(logger log.Logger) (storage.Storage, error) {
	return s.open(logger)
}

func (s *SQLite) open(logger log.Logger) (*conn, error) {
	db, err := sql.Open("sqlite3", s.File)
	if err != nil {
		return nil, err
	}
	// SQLite supports only one writer at a time; a single connection avoids
	// "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	errCheck := func(err error) bool {
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}

	c := &conn{db, flavorSQLite3, errCheck}
	if n, err := c.migrate(); err != nil {
		return nil, fmt.Errorf("failed to perform migrations: %v", err)
	} else if n > 0 {
		logger.Infof("applied %d migrations", n)
	}
	return c, nil
}
