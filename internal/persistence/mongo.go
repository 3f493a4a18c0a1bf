package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"madrasah/internal/common"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultMongoTimeout = 3 * time.Second

type MongoConnectionOpts struct {
	AppName             string
	Hosts               []string
	IsDirect            bool
	RetryInterval       time.Duration
	HealthcheckInterval time.Duration
}

type MongoAuthOpts struct {
	AuthMechanism string
	AuthSource    string
	Password      string
	Username      string
}

func (mao MongoAuthOpts) toNative() options.Credential {
	return options.Credential{
		AuthMechanism: mao.AuthMechanism,
		AuthSource:    mao.AuthSource,
		Password:      mao.Password,
		Username:      mao.Username,
	}
}

func NewMongo(
	connectionOpts MongoConnectionOpts,
	authOpts MongoAuthOpts,
	serviceLogs chan<- common.ServiceLog,
) *Mongo {
	clientOptions := options.Client().
		SetHosts(connectionOpts.Hosts).
		SetDirect(connectionOpts.IsDirect).
		SetAppName(getAppName(connectionOpts.AppName)).
		SetConnectTimeout(DefaultMongoTimeout)
	if authOpts.Username != "" {
		clientOptions.SetAuth(authOpts.toNative())
	}
	output := &Mongo{
		options: clientOptions,
		supervisor: newSupervisor(
			"mongo",
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

type Mongo struct {
	*supervisor

	client  *mongo.Client
	options *options.ClientOptions
	mutex   sync.Mutex
}

func (m *Mongo) GetClient() *mongo.Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.client
}

func (m *Mongo) Init() error {
	return m.supervisor.init()
}

func (m *Mongo) Shutdown() error {
	m.supervisor.shutdown()
	client := m.GetClient()
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultMongoTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo: %w", err)
	}
	return nil
}

// connect creates the client; mongo.Connect does no I/O so the
// supervisor's ping that follows is what proves the credentials work
func (m *Mongo) connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultMongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, m.options)
	if err != nil {
		return fmt.Errorf("failed to create mongo client: %w", err)
	}
	m.mutex.Lock()
	previous := m.client
	m.client = client
	m.mutex.Unlock()
	if previous != nil {
		previous.Disconnect(ctx)
	}
	return nil
}

func (m *Mongo) ping() error {
	client := m.GetClient()
	if client == nil {
		return fmt.Errorf("mongo[%s] has no connection", m.id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultMongoTimeout)
	defer cancel()
	return client.Ping(ctx, nil)
}
