package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"madrasah/internal/common"

	"github.com/go-sql-driver/mysql"
)

type MysqlConnectionOpts struct {
	AppName             string
	Host                string
	Database            string
	RetryInterval       time.Duration
	HealthcheckInterval time.Duration
}

type MysqlAuthOpts struct {
	Password string
	Username string
}

// MysqlConfig returns the driver configuration used for every
// connection. ClientFoundRows makes an UPDATE that matches a row
// without changing it report one affected row, which the store relies
// on to tell a missing row from an idempotent write
func MysqlConfig(connectionOpts MysqlConnectionOpts, authOpts MysqlAuthOpts) mysql.Config {
	config := mysql.NewConfig()
	config.User = authOpts.Username
	config.Passwd = authOpts.Password
	config.Net = "tcp"
	config.Addr = connectionOpts.Host
	config.DBName = connectionOpts.Database
	config.AllowNativePasswords = true
	config.ClientFoundRows = true
	config.ParseTime = true
	config.MultiStatements = true
	config.Loc = time.UTC
	return *config
}

func NewMysql(
	connectionOpts MysqlConnectionOpts,
	authOpts MysqlAuthOpts,
	serviceLogs chan<- common.ServiceLog,
) *Mysql {
	output := &Mysql{
		options: MysqlConfig(connectionOpts, authOpts),
		supervisor: newSupervisor(
			"mysql",
			connectionOpts.AppName,
			connectionOpts.HealthcheckInterval,
			connectionOpts.RetryInterval,
			serviceLogs,
		),
	}
	output.supervisor.connect = output.connect
	output.supervisor.ping = output.ping
	return output
}

type Mysql struct {
	*supervisor

	client  *sql.DB
	options mysql.Config
	mutex   sync.Mutex
}

func (m *Mysql) GetClient() *sql.DB {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.client
}

func (m *Mysql) Init() error {
	return m.supervisor.init()
}

func (m *Mysql) Shutdown() error {
	m.supervisor.shutdown()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.client == nil {
		return nil
	}
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("failed to close mysql connection: %w", err)
	}
	m.client = nil
	return nil
}

func (m *Mysql) connect() error {
	client, err := sql.Open("mysql", m.options.FormatDSN())
	if err != nil {
		return err
	}
	m.mutex.Lock()
	previous := m.client
	m.client = client
	m.mutex.Unlock()
	if previous != nil {
		previous.Close()
	}
	return nil
}

func (m *Mysql) ping() error {
	client := m.GetClient()
	if client == nil {
		return fmt.Errorf("mysql[%s] has no connection", m.id)
	}
	if _, err := client.Exec("SELECT 1"); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 4031 {
			return fmt.Errorf("mysql[%s] caught inactivity disconnect: %w", m.id, err)
		}
		return err
	}
	return nil
}
