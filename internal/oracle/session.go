// Package oracle opens Oracle sessions and runs PL/SQL blocks, collecting
// whatever the block writes with DBMS_OUTPUT.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	go_ora "github.com/sijms/go-ora/v2"

	dserrors "github.com/coredevops/coredev/internal/errors"
	"github.com/coredevops/coredev/internal/environments"
	"github.com/coredevops/coredev/internal/logging"
)

// ErrInvalidPassword is returned when Oracle rejects the credentials
// (ORA-01017).
var ErrInvalidPassword = errors.New("invalid username or password")

const (
	driverName      = "oracle"
	defaultPort     = 1521
	maxOutputLine   = 32767
	enableOutputSQL = "BEGIN DBMS_OUTPUT.ENABLE(NULL); END;"
	getLineSQL      = "BEGIN DBMS_OUTPUT.GET_LINE(:1, :2); END;"
)

// Target describes who to connect as and where.
type Target struct {
	Environment environments.Environment
	Username    string
	Password    string
	// AsSysDBA connects with the SYSDBA privilege.
	AsSysDBA bool
	// UseDescriptor connects through the raw tnsnames descriptor instead of
	// host, port and service name.
	UseDescriptor bool
}

// Session runs PL/SQL on one pinned connection.
type Session interface {
	Execute(ctx context.Context, plsql string) ([]string, error)
	Close() error
}

// Connector opens sessions.
type Connector interface {
	Connect(ctx context.Context, target Target) (Session, error)
}

// OutputReader drains DBMS_OUTPUT on conn.
type OutputReader func(ctx context.Context, conn *sql.Conn) ([]string, error)

// DriverConnector opens sessions with the go-ora driver.
type DriverConnector struct {
	// OpenDB opens a database handle; nil means sql.Open.
	OpenDB func(driverName, dsn string) (*sql.DB, error)
	// ReadOutput drains DBMS_OUTPUT; nil means DBMS_OUTPUT.GET_LINE.
	ReadOutput     OutputReader
	ConnectTimeout time.Duration
	Logger         *logging.Logger
}

// DSN builds the go-ora connection string for target.
func DSN(target Target) string {
	var options map[string]string
	if target.AsSysDBA {
		options = map[string]string{"DBA PRIVILEGE": "SYSDBA"}
	}

	env := target.Environment
	if target.UseDescriptor && env.Descriptor != "" {
		return go_ora.BuildJDBC(target.Username, target.Password, env.Descriptor, options)
	}

	port, err := strconv.Atoi(env.Port)
	if err != nil || port <= 0 {
		port = defaultPort
	}
	return go_ora.BuildUrl(env.Host, port, env.ServiceName, target.Username, target.Password, options)
}

// Connect logs in and pins one connection for the session.
func (c *DriverConnector) Connect(ctx context.Context, target Target) (Session, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	open := c.OpenDB
	if open == nil {
		open = sql.Open
	}

	db, err := open(driverName, DSN(target))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	connectCtx := ctx
	if c.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, c.ConnectTimeout)
		defer cancel()
	}

	logger.Debug("Connecting to %s as %s", target.Environment.Name, target.Username)
	conn, err := db.Conn(connectCtx)
	if err == nil {
		err = conn.PingContext(connectCtx)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, classify(err, target)
	}

	reader := c.ReadOutput
	if reader == nil {
		reader = readDBMSOutput
	}
	return &session{db: db, conn: conn, readOutput: reader, logger: logger}, nil
}

func classify(err error, target Target) error {
	if strings.Contains(err.Error(), "ORA-01017") {
		return fmt.Errorf("%w for %s on %s", ErrInvalidPassword, target.Username, target.Environment.Name)
	}
	return dserrors.BackendError("oracle", "connect", err)
}

type session struct {
	db         *sql.DB
	conn       *sql.Conn
	readOutput OutputReader
	logger     *logging.Logger
}

// Execute enables DBMS_OUTPUT, runs plsql and returns the output lines.
func (s *session) Execute(ctx context.Context, plsql string) ([]string, error) {
	if _, err := s.conn.ExecContext(ctx, enableOutputSQL); err != nil {
		return nil, fmt.Errorf("failed to enable DBMS_OUTPUT: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, plsql); err != nil {
		return nil, fmt.Errorf("failed to execute block: %w", err)
	}
	lines, err := s.readOutput(ctx, s.conn)
	if err != nil {
		return lines, fmt.Errorf("failed to read DBMS_OUTPUT: %w", err)
	}
	s.logger.Debug("Block produced %d output lines", len(lines))
	return lines, nil
}

// Close releases the pinned connection and the pool.
func (s *session) Close() error {
	connErr := s.conn.Close()
	dbErr := s.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

// readDBMSOutput calls GET_LINE until it reports no more lines (status 1).
func readDBMSOutput(ctx context.Context, conn *sql.Conn) ([]string, error) {
	var lines []string
	for {
		var (
			line   string
			status int64
		)
		_, err := conn.ExecContext(ctx, getLineSQL,
			go_ora.Out{Dest: &line, Size: maxOutputLine},
			go_ora.Out{Dest: &status})
		if err != nil {
			return lines, err
		}
		if status != 0 {
			return lines, nil
		}
		lines = append(lines, line)
	}
}
