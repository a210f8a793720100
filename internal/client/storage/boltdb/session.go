package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/DrakonKapysta/web-beat-api/internal/client/storage"
)

var sessionKey = []byte("current")

var _ storage.SessionStorage = (*Storage)(nil)

// SaveSession stores the session, replacing the previous one
func (s *Storage) SaveSession(ctx context.Context, session *storage.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putSession(tx, session)
	})
}

// GetSession retrieves the stored session
func (s *Storage) GetSession(ctx context.Context) (*storage.Session, error) {
	var session *storage.Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		session, err = getSession(tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateTokens replaces the token pair of the stored session in one transaction
func (s *Storage) UpdateTokens(ctx context.Context, accessToken, refreshToken string, accessExpiresAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		session, err := getSession(tx)
		if err != nil {
			return err
		}

		session.AccessToken = accessToken
		session.RefreshToken = refreshToken
		session.AccessExpiresAt = accessExpiresAt

		return putSession(tx, session)
	})
}

// DeleteSession removes the stored session
func (s *Storage) DeleteSession(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sessionBucket(tx)
		if err != nil {
			return err
		}

		if bucket.Get(sessionKey) == nil {
			return storage.ErrSessionNotFound
		}

		if err := bucket.Delete(sessionKey); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}

		return nil
	})
}

func sessionBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(bucketSession)
	if bucket == nil {
		return nil, errors.New("session bucket not found")
	}
	return bucket, nil
}

func getSession(tx *bbolt.Tx) (*storage.Session, error) {
	bucket, err := sessionBucket(tx)
	if err != nil {
		return nil, err
	}

	data := bucket.Get(sessionKey)
	if data == nil {
		return nil, storage.ErrSessionNotFound
	}

	// data принадлежит транзакции, Unmarshal копирует значения
	session := &storage.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return session, nil
}

func putSession(tx *bbolt.Tx, session *storage.Session) error {
	bucket, err := sessionBucket(tx)
	if err != nil {
		return err
	}

	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := bucket.Put(sessionKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}
