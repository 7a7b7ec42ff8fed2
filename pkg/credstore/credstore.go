/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package credstore manages the gateway credential file shared by the
// lanwarden processes. The file is searched across an ordered list of
// candidate paths; the first readable candidate wins on load and the
// first writable candidate wins on save. There is no file locking:
// concurrent writers overwrite whole files and the last write wins.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lanwarden/lanwarden/pkg/logger"
)

var (
	// ErrNoCredentials indicates that no candidate path held a readable credential file.
	ErrNoCredentials = errors.New("no credential file found")
	// ErrNoAppToken indicates a credential file without an app token.
	ErrNoAppToken = errors.New("credential file has no app token")
	// ErrNotWritable indicates that no candidate path accepted the write.
	ErrNotWritable = errors.New("no candidate path is writable")
)

const credFileMode = 0o600

// Credentials is the on-disk credential artifact.
type Credentials struct {
	AppToken          string `json:"app_token"`
	SessionToken      string `json:"session_token,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	LastSessionUpdate string `json:"last_session_update,omitempty"`
}

// DefaultPaths returns the candidate locations probed in order.
func DefaultPaths() []string {
	return []string{
		"/etc/lanwarden/tokens.json",
		"/var/lib/lanwarden/tokens.json",
		"/tmp/lanwarden_tokens.json",
		"lanwarden_tokens.json",
	}
}

// Store reads and writes the credential file.
type Store struct {
	paths  []string
	logger logger.Logger

	mu    sync.RWMutex
	creds *Credentials
}

// New creates a credential store over the given candidate paths.
// An empty path list falls back to DefaultPaths.
func New(paths []string, log logger.Logger) *Store {
	if len(paths) == 0 {
		paths = DefaultPaths()
	}

	return &Store{
		paths:  paths,
		logger: log,
	}
}

// Load reads the first readable candidate and caches the result.
// Unreadable or malformed candidates are skipped.
func (s *Store) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked()
}

func (s *Store) loadLocked() (*Credentials, error) {
	for _, path := range s.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Skipping malformed credential file")
			continue
		}

		s.logger.Debug().Str("path", path).Msg("Loaded credentials")
		s.creds = &creds

		return &creds, nil
	}

	return nil, fmt.Errorf("%w: tried %v", ErrNoCredentials, s.paths)
}

// Credentials returns the cached credentials, loading them on first use.
func (s *Store) Credentials() (*Credentials, error) {
	s.mu.RLock()
	if s.creds != nil {
		creds := *s.creds
		s.mu.RUnlock()

		return &creds, nil
	}
	s.mu.RUnlock()

	return s.Load()
}

// AppToken returns the long-lived app token.
func (s *Store) AppToken() (string, error) {
	creds, err := s.Credentials()
	if err != nil {
		return "", err
	}

	if creds.AppToken == "" {
		return "", ErrNoAppToken
	}

	return creds.AppToken, nil
}

// SessionToken returns the cached session token, which may be empty.
func (s *Store) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return ""
	}

	return s.creds.SessionToken
}

// Save writes credentials to the first writable candidate path.
func (s *Store) Save(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(creds); err != nil {
		return err
	}

	s.creds = creds

	return nil
}

func (s *Store) saveLocked(creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	var lastErr error

	for _, path := range s.paths {
		if err := os.WriteFile(path, data, credFileMode); err != nil {
			lastErr = err
			continue
		}

		s.logger.Debug().Str("path", path).Msg("Saved credentials")

		return nil
	}

	return fmt.Errorf("%w: %w", ErrNotWritable, lastErr)
}

// Refresh re-reads the credential file and returns the session token
// currently on disk. A concurrent process may have rotated it.
func (s *Store) Refresh() (string, error) {
	creds, err := s.Load()
	if err != nil {
		return "", err
	}

	return creds.SessionToken, nil
}

// SaveSessionToken persists a refreshed session token. The file is
// re-read first so a token rotated by a concurrent process is not
// clobbered with stale fields.
func (s *Store) SaveSessionToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.loadLocked()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			return err
		}
		// First save on a fresh install.
		if s.creds == nil {
			return err
		}

		creds = s.creds
	}

	creds.SessionToken = token
	creds.LastSessionUpdate = time.Now().UTC().Format(time.RFC3339)

	if err := s.saveLocked(creds); err != nil {
		return err
	}

	s.creds = creds

	return nil
}
