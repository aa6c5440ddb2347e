// Package mongo stores board documents in a MongoDB collection, one
// document per board keyed by _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kandev/taskboard/internal/board/repository"
	v1 "github.com/kandev/taskboard/pkg/api/v1"
)

// CollectionName is the collection holding boards.
const CollectionName = "boards"

// Repository is a board store on a MongoDB collection.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ repository.Repository = (*Repository)(nil)

// Connect dials uri and returns a repository on database/boards. The
// repository owns the client.
func Connect(ctx context.Context, uri, database string) (*Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	repo := &Repository{client: client, coll: client.Database(database).Collection(CollectionName)}
	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create boards index: %w", err)
	}
	return nil
}

// Create inserts a new board document.
func (r *Repository) Create(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	b := repository.PrepareNew(board, repository.Now())
	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		return nil, fmt.Errorf("insert board %s: %w", b.ID, err)
	}
	return b, nil
}

// Load reads one board document.
func (r *Repository) Load(ctx context.Context, id string) (*v1.Board, error) {
	var b v1.Board
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", id, err)
	}
	normalize(&b)
	return &b, nil
}

// Save replaces the whole document. ReplaceOne is atomic per document.
func (r *Repository) Save(ctx context.Context, board *v1.Board) (*v1.Board, error) {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": board.ID}, board)
	if err != nil {
		return nil, fmt.Errorf("save board %s: %w", board.ID, err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrBoardNotFound, board.ID)
	}
	return board.Clone(), nil
}

// Delete removes a board document.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete board %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", repository.ErrBoardNotFound, id)
	}
	return nil
}

// List returns every board, newest first.
func (r *Repository) List(ctx context.Context) ([]*v1.Board, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var boards []*v1.Board
	if err := cur.All(ctx, &boards); err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	for _, b := range boards {
		normalize(b)
	}
	if boards == nil {
		boards = []*v1.Board{}
	}
	return boards, nil
}

// Close disconnects the client.
func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// normalize turns BSON nulls for empty arrays back into empty slices so a
// loaded board compares equal to the one that was saved.
func normalize(b *v1.Board) {
	if b.Columns == nil {
		b.Columns = []v1.Column{}
	}
	if b.Users == nil {
		b.Users = []v1.User{}
	}
	for i := range b.Columns {
		if b.Columns[i].Tasks == nil {
			b.Columns[i].Tasks = []v1.Task{}
		}
	}
}
