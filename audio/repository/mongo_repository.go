package repository

import (
	"context"
	"errors"
	"time"

	"audio-library/backend/audio/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// CollectionName is the mongo collection holding audio asset documents
const CollectionName = "audio_files"

type assetDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Language  string             `bson:"language"`
	Filename  string             `bson:"filename"`
	URL       string             `bson:"url"`
	FileSize  int64              `bson:"file_size"`
	Duration  *float64           `bson:"duration"`
	Format    string             `bson:"format"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d assetDocument) toModel() *models.AudioAsset {
	return &models.AudioAsset{
		ID:        d.ID.Hex(),
		Language:  d.Language,
		Filename:  d.Filename,
		URL:       d.URL,
		FileSize:  d.FileSize,
		Duration:  d.Duration,
		Format:    d.Format,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoAudioRepository stores assets as documents in a MongoDB collection
type MongoAudioRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoAudioRepository(client *mongo.Client, database string) *MongoAudioRepository {
	return &MongoAudioRepository{
		client:     client,
		collection: client.Database(database).Collection(CollectionName),
	}
}

// EnsureIndexes creates the lookup indexes used by language queries
func (r *MongoAudioRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "language", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "language", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (r *MongoAudioRepository) Create(ctx context.Context, asset *models.AudioAsset) error {
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = asset.CreatedAt
	}

	doc := assetDocument{
		Language:  asset.Language,
		Filename:  asset.Filename,
		URL:       asset.URL,
		FileSize:  asset.FileSize,
		Duration:  asset.Duration,
		Format:    asset.Format,
		CreatedAt: asset.CreatedAt,
		UpdatedAt: asset.UpdatedAt,
	}
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		asset.ID = oid.Hex()
	}
	return nil
}

func (r *MongoAudioRepository) FindByLanguage(ctx context.Context, language string) (*models.AudioAsset, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"language": language}, opts)
}

func (r *MongoAudioRepository) FindByID(ctx context.Context, id string) (*models.AudioAsset, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoAudioRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.AudioAsset, error) {
	var doc assetDocument
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoAudioRepository) List(ctx context.Context) ([]models.AudioAsset, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []assetDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	assets := make([]models.AudioAsset, 0, len(docs))
	for _, d := range docs {
		assets = append(assets, *d.toModel())
	}
	return assets, nil
}

func (r *MongoAudioRepository) CountByLanguage(ctx context.Context) ([]models.LanguageCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$language"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		Language string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	rows := make([]models.LanguageCount, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, models.LanguageCount{Language: g.Language, Count: g.Count})
	}
	return rows, nil
}

func (r *MongoAudioRepository) Update(ctx context.Context, id string, patch models.AssetPatch) (*models.AudioAsset, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	set := bson.M{}
	for k, v := range patch.Fields() {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	var doc assetDocument
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *MongoAudioRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrInvalidID
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoAudioRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
