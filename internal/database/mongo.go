package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docspace/entity"
	"docspace/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionUsers     = "users"
	collectionSnapshots = "snapshots"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) Load(ctx context.Context, key string, value interface{}) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionSnapshots)
	filter := bson.D{{Key: "_id", Value: key}}
	var doc snapshotDocument
	if err = collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return m.findError(err)
	}
	if err = bson.Unmarshal(doc.Data, value); err != nil {
		return fmt.Errorf("mongodb decode %s: %w", key, err)
	}
	return nil
}

func (m *MongoDB) Save(ctx context.Context, key string, value interface{}) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionSnapshots)
	filter := bson.D{{Key: "_id", Value: key}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "data", Value: value},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb save %s: %w", key, err)
	}
	return nil
}

func (m *MongoDB) Close() {}

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	if err = collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

// SaveUser creates or replaces an API user keyed by username.
func (m *MongoDB) SaveUser(ctx context.Context, user *entity.User) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "username", Value: user.Username}}
	update := bson.D{{Key: "$set", Value: user}}
	opts := options.Update().SetUpsert(true)
	_, err = collection.UpdateOne(ctx, filter, update, opts)
	return err
}
