package config

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MongoDBConfig struct {
	URI string
}

func NewMongoDBConfig() *MongoDBConfig {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		log.Fatal("DB uri not set")
	}
	return &MongoDBConfig{URI: uri}
}

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBClient(lc fx.Lifecycle, config *MongoDBConfig, logger *zap.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(config.URI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	err = client.Ping(ctx, nil)
	if err != nil {
		logger.Fatal("failed to ping MongoDB", zap.Error(err))
	}

	logger.Info("connected to MongoDB")

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("MongoDB connection verified on startup")
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("closing MongoDB connection")
			return client.Disconnect(stopCtx)
		},
	})
	db := client.Database("kiddrop")
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

// UniqueEmailIndex enforces one account per email address on the users collection.
func UniqueEmailIndex(collection *mongo.Collection, logger *zap.Logger) {
	indexmodel := mongo.IndexModel{
		Keys:    bson.M{"email": 1},
		Options: options.Index().SetUnique(true),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, indexmodel)
	if err != nil {
		logger.Fatal("failed to create unique index on email", zap.Error(err))
	}

	logger.Info("unique index on email created")
}

func (c *MongoDBClient) GetCollection(collectionName string) *mongo.Collection {
	return c.Database.Collection(collectionName)
}
