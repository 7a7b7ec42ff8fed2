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

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
		check   func(t *testing.T, config *Config)
	}{
		{
			name:   "fills defaults",
			config: Config{},
			check: func(t *testing.T, config *Config) {
				t.Helper()
				assert.Equal(t, DefaultEndpoints(), config.Endpoints)
				assert.Equal(t, defaultAppID, config.AppID)
				assert.Equal(t, defaultAppName, config.AppName)
				assert.NotEmpty(t, config.AppVersion)
				assert.Equal(t, defaultDeviceName, config.DeviceName)
				assert.Equal(t, models.Duration(defaultTimeout), config.Timeout)
			},
		},
		{
			name: "keeps explicit values",
			config: Config{
				Endpoints: []string{"http://10.0.0.1"},
				AppID:     "custom",
				Timeout:   models.Duration(3 * time.Second),
			},
			check: func(t *testing.T, config *Config) {
				t.Helper()
				assert.Equal(t, []string{"http://10.0.0.1"}, config.Endpoints)
				assert.Equal(t, "custom", config.AppID)
				assert.Equal(t, models.Duration(3*time.Second), config.Timeout)
			},
		},
		{
			name:    "rejects scheme-less endpoint",
			config:  Config{Endpoints: []string{"192.168.1.1"}},
			wantErr: ErrInvalidEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			tt.check(t, &tt.config)
		})
	}
}

func TestDetectVersionSkipsDeadEndpoints(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	gw := newFakeGateway()
	live := httptest.NewServer(gw)
	t.Cleanup(live.Close)

	client, err := New(&Config{
		Endpoints: []string{dead.URL, live.URL},
		Timeout:   models.Duration(2 * time.Second),
	}, &fakeStore{appToken: testAppToken}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, client.DetectVersion(context.Background()))

	assert.Equal(t, live.URL, client.baseURL)
	assert.Equal(t, "v15", client.apiVersion)
}

func TestDetectVersionNoEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	client, err := New(&Config{
		Endpoints: []string{dead.URL},
		Timeout:   models.Duration(time.Second),
	}, &fakeStore{appToken: testAppToken}, nil, logger.NewTestLogger())
	require.NoError(t, err)

	err = client.DetectVersion(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestDetectVersionFallbackWhenVersionMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"device_name": "Old Gateway"})
	}))
	t.Cleanup(server.Close)

	client, err := New(&Config{
		Endpoints: []string{server.URL},
		Timeout:   models.Duration(time.Second),
	}, &fakeStore{appToken: testAppToken}, server.Client(), logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, client.DetectVersion(context.Background()))

	assert.Equal(t, defaultAPIVersion, client.apiVersion)
}

func TestUnwrapResult(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		envelope *apiResponse
		wantErr  error
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			envelope: &apiResponse{Success: true, Result: json.RawMessage(`{"ok":1}`)},
		},
		{
			name:    "no envelope",
			status:  http.StatusBadGateway,
			wantErr: ErrUnexpectedStatus,
		},
		{
			name:     "api failure",
			status:   http.StatusOK,
			envelope: &apiResponse{Success: false, Message: "nope", ErrorCode: "invalid_request"},
			wantErr:  ErrRequestFailed,
		},
		{
			name:     "success flag with odd status",
			status:   http.StatusAccepted,
			envelope: &apiResponse{Success: true},
			wantErr:  ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := unwrapResult(tt.status, tt.envelope)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.envelope.Result, result)
		})
	}
}

func TestIsSessionRejection(t *testing.T) {
	assert.True(t, isSessionRejection(http.StatusForbidden, nil))
	assert.True(t, isSessionRejection(http.StatusOK, &apiResponse{ErrorCode: errCodeAuthRequired}))
	assert.True(t, isSessionRejection(http.StatusOK, &apiResponse{ErrorCode: errCodeInvalidSession}))
	assert.False(t, isSessionRejection(http.StatusOK, &apiResponse{Success: true}))
	assert.False(t, isSessionRejection(http.StatusOK, &apiResponse{ErrorCode: "invalid_request"}))
	assert.False(t, isSessionRejection(http.StatusInternalServerError, nil))
}
