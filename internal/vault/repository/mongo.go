package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/zewo/opsdash/internal/vault"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements vault.Store on a MongoDB collection. Items are keyed by their
// string id in _id; insertion order comes from a counter document in "<collection>_counters".
// RemoveAll runs in a multi-document transaction, so the server must be a replica set.
type MongoRepo struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "seq", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create vault index: %w", err)
	}
	return &MongoRepo{
		col:      col,
		counters: col.Database().Collection(col.Name() + "_counters"),
	}, nil
}

func (m *MongoRepo) nextSeq(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx, bson.M{"_id": "items"}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return doc.Seq, nil
}

func (m *MongoRepo) Insert(ctx context.Context, it *vault.Item) error {
	if it.ID == "" || it.ID == vault.RootID {
		return vault.Conflict("invalid item id " + it.ID)
	}
	seq, err := m.nextSeq(ctx)
	if err != nil {
		return err
	}
	it.Seq = seq
	if _, err := m.col.InsertOne(ctx, it); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return vault.Conflict("item " + it.ID + " already exists")
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*vault.Item, error) {
	var it vault.Item
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, vault.NotFound(id)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

func (m *MongoRepo) ChildrenOf(ctx context.Context, parentID string) ([]*vault.Item, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetProjection(bson.M{"content": 0})
	cur, err := m.col.Find(ctx, bson.M{"parentId": parentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer cur.Close(ctx)
	out := []*vault.Item{}
	for cur.Next(ctx) {
		var it vault.Item
		if err := cur.Decode(&it); err != nil {
			return nil, fmt.Errorf("decode child: %w", err)
		}
		out = append(out, &it)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return out, nil
}

func (m *MongoRepo) RemoveAll(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sess, err := m.col.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := m.col.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount != int64(len(ids)) {
			// aborts the transaction; nothing is removed
			return nil, &vault.Error{Code: vault.CodeNotFound, Message: fmt.Sprintf("expected %d items, found %d", len(ids), res.DeletedCount)}
		}
		return nil, nil
	})
	if err != nil {
		if vault.CodeOf(err) != "" {
			return err
		}
		return fmt.Errorf("remove items: %w", err)
	}
	return nil
}

func (m *MongoRepo) Count(ctx context.Context) (int, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return int(n), nil
}
