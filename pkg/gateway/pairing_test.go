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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestAuthorization(t *testing.T) {
	gw := newFakeGateway()
	client := newTestClient(t, gw, &fakeStore{})

	ticket, err := client.RequestAuthorization(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh-app-token", ticket.AppToken)
	assert.Equal(t, 42, ticket.TrackID)

	require.Len(t, gw.authorized, 1)
	assert.Equal(t, defaultAppID, gw.authorized[0].AppID)
	assert.Equal(t, defaultAppName, gw.authorized[0].AppName)
	assert.NotEmpty(t, gw.authorized[0].DeviceName)
}

func TestTrackAuthorization(t *testing.T) {
	gw := newFakeGateway()
	gw.pairStates = []string{"pending", "granted"}

	client := newTestClient(t, gw, &fakeStore{})

	status, err := client.TrackAuthorization(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, PairingPending, status)

	status, err = client.TrackAuthorization(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, PairingGranted, status)
}

func TestWaitForAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		states  []string
		wantErr error
	}{
		{
			name:   "granted after pending",
			states: []string{"pending", "pending", "granted"},
		},
		{
			name:    "denied",
			states:  []string{"pending", "denied"},
			wantErr: ErrPairingDenied,
		},
		{
			name:    "gateway side timeout",
			states:  []string{"timeout"},
			wantErr: ErrPairingTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.pairStates = tt.states

			client := newTestClient(t, gw, &fakeStore{})

			err := client.WaitForAuthorization(context.Background(), 42, 10*time.Millisecond)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestWaitForAuthorizationContextExpiry(t *testing.T) {
	gw := newFakeGateway()
	gw.pairStates = []string{"pending"}

	client := newTestClient(t, gw, &fakeStore{})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := client.WaitForAuthorization(ctx, 42, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
