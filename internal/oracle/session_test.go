package oracle

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredevops/coredev/internal/environments"
)

var testEnv = environments.Environment{
	Name:        "PRDPD1",
	Host:        "db1.prdpd1.rds.amazonaws.com",
	Port:        "1521",
	ServiceName: "PRDPD1",
	Descriptor:  "(DESCRIPTION=(ADDRESS=(PROTOCOL=TCP)(HOST=db1.prdpd1.rds.amazonaws.com)(PORT=1521))(CONNECT_DATA=(SERVICE_NAME=PRDPD1)))",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.MonitorPingsOption(true),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	require.NoError(t, err)
	return db, mock
}

func connectorFor(db *sql.DB, reader OutputReader) *DriverConnector {
	return &DriverConnector{
		OpenDB: func(driver, dsn string) (*sql.DB, error) {
			return db, nil
		},
		ReadOutput: reader,
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   Target
		contains []string
		excludes []string
	}{
		{
			name:     "host port service",
			target:   Target{Environment: testEnv, Username: "PRM_APP01", Password: "pw"},
			contains: []string{"oracle://", "PRM_APP01", "db1.prdpd1.rds.amazonaws.com:1521", "/PRDPD1"},
			excludes: []string{"SYSDBA"},
		},
		{
			name:     "sysdba",
			target:   Target{Environment: testEnv, Username: "SYS", Password: "pw", AsSysDBA: true},
			contains: []string{"SYSDBA"},
		},
		{
			name: "missing port falls back to default",
			target: Target{
				Environment: environments.Environment{Host: "db1", ServiceName: "PRDPD1"},
				Username:    "u",
				Password:    "p",
			},
			contains: []string{"db1:1521"},
		},
		{
			name:     "descriptor",
			target:   Target{Environment: testEnv, Username: "u", Password: "p", UseDescriptor: true},
			contains: []string{"connStr=", "DESCRIPTION"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dsn := DSN(tt.target)
			for _, want := range tt.contains {
				assert.Contains(t, dsn, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, dsn, unwanted)
			}
		})
	}
}

func TestConnectAndExecute(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectPing()
	mock.ExpectExec(enableOutputSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("BEGIN dbms_output.put_line('ok'); END;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	var readCalled bool
	reader := func(ctx context.Context, conn *sql.Conn) ([]string, error) {
		readCalled = true
		return []string{"ok", "done"}, nil
	}

	sess, err := connectorFor(db, reader).Connect(context.Background(), Target{Environment: testEnv, Username: "u", Password: "p"})
	require.NoError(t, err)

	lines, err := sess.Execute(context.Background(), "BEGIN dbms_output.put_line('ok'); END;")
	require.NoError(t, err)
	assert.True(t, readCalled)
	assert.Equal(t, []string{"ok", "done"}, lines)

	require.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectInvalidPassword(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectPing().WillReturnError(errors.New("ORA-01017: invalid username/password; logon denied"))
	mock.ExpectClose()

	_, err := connectorFor(db, nil).Connect(context.Background(), Target{Environment: testEnv, Username: "u", Password: "bad"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Contains(t, err.Error(), "PRDPD1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectOtherFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectPing().WillReturnError(errors.New("ORA-12514: TNS:listener does not currently know of service"))
	mock.ExpectClose()

	_, err := connectorFor(db, nil).Connect(context.Background(), Target{Environment: testEnv, Username: "u", Password: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPassword)
	assert.Contains(t, err.Error(), "oracle error during connect")
}

func TestConnectOpenFailure(t *testing.T) {
	t.Parallel()

	c := &DriverConnector{OpenDB: func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}}
	_, err := c.Connect(context.Background(), Target{Environment: testEnv})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database connection")
}

func TestExecuteBlockFailure(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectPing()
	mock.ExpectExec(enableOutputSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("BEGIN broken; END;").WillReturnError(errors.New("ORA-06550: line 1, column 7"))
	mock.ExpectClose()

	reader := func(context.Context, *sql.Conn) ([]string, error) {
		t.Fatal("output must not be read after a failed block")
		return nil, nil
	}

	sess, err := connectorFor(db, reader).Connect(context.Background(), Target{Environment: testEnv})
	require.NoError(t, err)

	_, err = sess.Execute(context.Background(), "BEGIN broken; END;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute block")
	assert.Contains(t, err.Error(), "ORA-06550")

	require.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteDefaultReaderError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectPing()
	mock.ExpectExec(enableOutputSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("BEGIN NULL; END;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	// sqlmock cannot bind go-ora output parameters, so GET_LINE fails.
	sess, err := connectorFor(db, nil).Connect(context.Background(), Target{Environment: testEnv})
	require.NoError(t, err)

	_, err = sess.Execute(context.Background(), "BEGIN NULL; END;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read DBMS_OUTPUT")

	require.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
