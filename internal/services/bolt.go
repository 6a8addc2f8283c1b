package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/MegaGrindStone/research-web-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for persistent storage of
// conversations, messages, and research snapshots. It provides atomic operations for managing
// conversation histories through a key-value storage model.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte("conversations")); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte("research"))
		return err
	})

	return BoltDB{db: db}, err
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("messages-%s", conversationID))
}

// Sequence numbers are zero padded so the byte order of keys matches insertion order.
func sequenceKey(seq uint64, id string) string {
	return fmt.Sprintf("%08d-%s", seq, id)
}

// Conversations retrieves all stored conversation records from the database, newest first. It
// returns a slice of Conversation models or an error if the database operation fails.
func (b BoltDB) Conversations(context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("conversations"))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var conversation models.Conversation
			if err := json.Unmarshal(v, &conversation); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			conversations = append(conversations, conversation)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(conversations)
	return conversations, nil
}

// AddConversation stores a new conversation record in the database and creates an associated
// message bucket. It generates a unique ID for the conversation by combining a sequence number
// with the conversation's original ID, and returns the new ID or an error if the operation fails.
func (b BoltDB) AddConversation(_ context.Context, conversation models.Conversation) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("conversations"))
		if b == nil {
			return nil
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = sequenceKey(seq, conversation.ID)
		conversation.ID = newID

		_, err = tx.CreateBucketIfNotExists(messageBucketName(conversation.ID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return b.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateConversation modifies an existing conversation record in the database. If the conversation
// doesn't exist, the operation is silently ignored. Returns an error if the marshaling or database
// operation fails.
func (b BoltDB) UpdateConversation(_ context.Context, conversation models.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("conversations"))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(conversation.ID))
		if v == nil {
			return nil
		}

		v, err := json.Marshal(conversation)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}

		return b.Put([]byte(conversation.ID), v)
	})
}

// Messages retrieves all messages associated with the specified conversation ID. It returns the
// messages in their stored order or an error if the database operation fails.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage stores a new message in the specified conversation's message bucket. The message
// keeps its original ID; a sequence number is baked into the storage key to preserve insertion
// order. Returns an error if the operation fails.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return nil
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return b.Put([]byte(sequenceKey(seq, message.ID)), v)
	})
}

// UpdateMessage modifies an existing message in the specified conversation's message bucket. If
// the message doesn't exist, the operation is silently ignored. Returns an error if the marshaling
// or database operation fails.
func (b BoltDB) UpdateMessage(_ context.Context, conversationID string, message models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messageBucketName(conversationID))
		if b == nil {
			return nil
		}

		// The message being updated is almost always the newest one, so scan from the tail.
		c := b.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if !strings.HasSuffix(string(k), "-"+message.ID) {
				continue
			}

			v, err := json.Marshal(message)
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			return b.Put(k, v)
		}

		return nil
	})
}

// SaveResearchData stores the research snapshot for the specified conversation, replacing any
// previous snapshot. Returns an error if the marshaling or database operation fails.
func (b BoltDB) SaveResearchData(_ context.Context, conversationID string, data models.ResearchData) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("research"))
		if b == nil {
			return nil
		}

		v, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal research data: %w", err)
		}

		return b.Put([]byte(conversationID), v)
	})
}

// ResearchData retrieves the research snapshot for the specified conversation. It returns a zero
// value if no snapshot has been stored, or an error if the database operation fails.
func (b BoltDB) ResearchData(_ context.Context, conversationID string) (models.ResearchData, error) {
	var data models.ResearchData
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("research"))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(conversationID))
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &data); err != nil {
			return fmt.Errorf("failed to unmarshal research data: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ResearchData{}, err
	}
	return data, nil
}
