package connector

import (
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/go-sql-driver/mysql"
	"net/url"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// Validate checks the preconditions shared by all network backends:
// a non-empty host, a positive port and a non-empty target (database / collection name).
func Validate(cred config.Credential, target string) error {
	if err := validateAddr(cred); err != nil {
		return err
	}
	if target == "" {
		return database.NewError(database.CodeInvalidConfiguration, "target database name is empty")
	}
	return nil
}

func validateAddr(cred config.Credential) error {
	if cred.Host == "" {
		return database.NewError(database.CodeInvalidConfiguration, "host is empty")
	}
	if cred.Port <= 0 {
		return database.Errorf(database.CodeInvalidConfiguration, "port must be positive, got %d", cred.Port)
	}
	return nil
}

// userInfo returns nil for unauthenticated connections.
// Credentials are omitted only when username AND password are blank, servers with
// authentication disabled reject connection strings that carry an empty user.
func userInfo(cred config.Credential) *url.Userinfo {
	if !cred.HasAuth() {
		return nil
	}
	return url.UserPassword(cred.Username, cred.Password)
}

// --------------------------------------------------------------------------
// Connection strings
// --------------------------------------------------------------------------

// MongoURI builds a mongodb:// connection string that authenticates against the target database.
func MongoURI(cred config.Credential, databaseName string) (string, error) {
	if err := Validate(cred, databaseName); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "mongodb",
		User:     userInfo(cred),
		Host:     cred.Addr(),
		Path:     "/",
		RawQuery: url.Values{"authSource": {databaseName}}.Encode(),
	}
	return u.String(), nil
}

// RedisURI builds a redis:// connection string for the given logical database index.
func RedisURI(cred config.Credential, db int) (string, error) {
	if err := validateAddr(cred); err != nil {
		return "", err
	}
	if db < 0 {
		return "", database.Errorf(database.CodeInvalidConfiguration, "redis database index must not be negative, got %d", db)
	}
	u := url.URL{
		Scheme: "redis",
		User:   userInfo(cred),
		Host:   cred.Addr(),
		Path:   "/" + strconv.Itoa(db),
	}
	return u.String(), nil
}

// PostgresURI builds a postgres:// connection string understood by pgx.
func PostgresURI(cred config.Credential, databaseName string) (string, error) {
	if err := Validate(cred, databaseName); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: "postgres",
		User:   userInfo(cred),
		Host:   cred.Addr(),
		Path:   "/" + databaseName,
	}
	return u.String(), nil
}

// MySQLDSN builds a go-sql-driver/mysql DSN. It is used for MySQL and MariaDB.
func MySQLDSN(cred config.Credential, databaseName string) (string, error) {
	if err := Validate(cred, databaseName); err != nil {
		return "", err
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = cred.Addr()
	cfg.DBName = databaseName
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	if cred.HasAuth() {
		cfg.User = cred.Username
		cfg.Passwd = cred.Password
	}
	return cfg.FormatDSN(), nil
}

// SQLitePath validates the path of a local database file.
// Host, port and credentials are not used by local databases.
func SQLitePath(path string) (string, error) {
	if path == "" {
		return "", database.NewError(database.CodeInvalidConfiguration, "database path is empty")
	}
	return path, nil
}
