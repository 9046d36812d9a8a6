package storage

import (
	"context"
	"errors"
	"fmt"

	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/logger"
	"github.com/xilidan/signposting/services/ai/consts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	client       *mongo.Client
	db           *mongo.Database
	profileField string
}

func NewMongo(ctx context.Context, cfg *config.DatabaseConfig) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Mongo{
		client:       client,
		db:           client.Database(cfg.Name),
		profileField: cfg.ProfileField,
	}, nil
}

// Acquire starts a session that scopes every operation of one request.
func (m *Mongo) Acquire(ctx context.Context) (Records, error) {
	sess, err := m.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start mongo session: %w", err)
	}
	return &mongoRecords{db: m.db, sess: sess, profileField: m.profileField}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoRecords struct {
	db           *mongo.Database
	sess         mongo.Session
	profileField string
}

func (r *mongoRecords) UpdateMessage(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	log := logger.FromContext(ctx)
	sctx := mongo.NewSessionContext(ctx, r.sess)

	res, err := r.db.Collection(consts.CollectionMessages).UpdateOne(sctx,
		bson.D{{Key: consts.FieldMessageSid, Value: messageID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: consts.FieldBody, Value: transcript},
			{Key: consts.FieldAudioURI, Value: uri},
		}}},
	)
	if err != nil {
		log.Error("failed to update message", "error", err)
		return false, fmt.Errorf("failed to update message: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoRecords) UpdateFlowResponse(ctx context.Context, messageID, transcript, uri string) (bool, error) {
	log := logger.FromContext(ctx)
	sctx := mongo.NewSessionContext(ctx, r.sess)

	field := consts.FieldFlowResponses
	res, err := r.db.Collection(consts.CollectionFlowHistory).UpdateOne(sctx,
		bson.D{{Key: field + "." + consts.FieldOriginalMessageSid, Value: messageID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: field + ".$." + consts.FieldUserResponse, Value: consts.TagTranscript(transcript)},
			{Key: field + ".$." + consts.FieldAudioURI, Value: uri},
		}}},
	)
	if err != nil {
		log.Error("failed to update flow history", "error", err)
		return false, fmt.Errorf("failed to update flow history: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoRecords) UpdateContactProfile(ctx context.Context, messageID, transcript string) (bool, error) {
	log := logger.FromContext(ctx)
	sctx := mongo.NewSessionContext(ctx, r.sess)
	contacts := r.db.Collection(consts.CollectionContacts)

	var contact bson.D
	err := contacts.FindOne(sctx,
		contactFilter(r.profileField, messageID),
		options.FindOne().SetProjection(bson.D{{Key: r.profileField, Value: 1}}),
	).Decode(&contact)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		log.Error("failed to find contact", "error", err)
		return false, fmt.Errorf("failed to find contact: %w", err)
	}

	id, _ := lookup(contact, "_id")
	raw, _ := lookup(contact, r.profileField)
	profile, _ := raw.(bson.D)
	match, ok := FindProfileMatch(profile, messageID)
	if !ok {
		return false, nil
	}

	path := match.Path(r.profileField)
	res, err := contacts.UpdateOne(sctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: path, Value: transcript}}}},
	)
	if err != nil {
		log.Error("failed to update contact", "error", err, "path", path)
		return false, fmt.Errorf("failed to update contact: %w", err)
	}
	log.Debug("contact profile updated", "path", path)
	return res.MatchedCount > 0, nil
}

func (r *mongoRecords) Release() {
	r.sess.EndSession(context.Background())
}

// contactFilter matches contacts whose profile holds messageID in any field,
// either as a single object or inside a list.
func contactFilter(profileField, messageID string) bson.D {
	sid := "$$field.v." + consts.FieldOriginalMessageSid
	return bson.D{{Key: "$expr", Value: bson.D{{Key: "$anyElementTrue", Value: bson.A{
		bson.D{{Key: "$map", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$objectToArray", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{"$" + profileField, bson.D{}}},
			}}}},
			{Key: "as", Value: "field"},
			{Key: "in", Value: bson.D{{Key: "$in", Value: bson.A{
				messageID,
				bson.D{{Key: "$cond", Value: bson.A{
					bson.D{{Key: "$isArray", Value: "$$field.v"}},
					bson.D{{Key: "$ifNull", Value: bson.A{sid, bson.A{}}}},
					bson.A{sid},
				}}},
			}}}},
		}}},
	}}}}}
}
