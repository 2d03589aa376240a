package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/accounthub/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultPingTimeout    = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultMaxConnIdle    = 2 * time.Minute
	defaultMinPoolSize    = 5
	defaultMaxPoolSize    = 25
)

// Open connects to MongoDB and returns the configured database.
// Callers own the returned client and must Disconnect it.
func Open(ctx context.Context, cfg config.Config) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.Database.URI).
		SetConnectTimeout(defaultConnectTimeout).
		SetMaxConnIdleTime(defaultMaxConnIdle).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxPoolSize(defaultMaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	if err := Ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	return client, client.Database(cfg.Database.DBName), nil
}

// Ping checks that the primary is reachable.
func Ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}

// MigrationURL builds the connection string golang-migrate expects, which
// carries the database name in the path.
func MigrationURL(cfg config.Config) (string, error) {
	u, err := url.Parse(cfg.Database.URI)
	if err != nil {
		return "", fmt.Errorf("parse mongo uri: %w", err)
	}
	if strings.TrimSpace(cfg.Database.DBName) == "" {
		return "", fmt.Errorf("mongo database name is required")
	}
	u.Path = "/" + cfg.Database.DBName
	return u.String(), nil
}
