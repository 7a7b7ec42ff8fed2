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

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "already canonical",
			input: "aa:bb:cc:dd:ee:ff",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "uppercase from gateway",
			input: "AA:BB:CC:DD:EE:FF",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "dash separated",
			input: "AA-BB-CC-DD-EE-FF",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "surrounding whitespace",
			input: "  aa:bb:cc:dd:ee:ff\n",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:    "too short",
			input:   "aa:bb:cc:dd:ee",
			wantErr: true,
		},
		{
			name:    "non-hex",
			input:   "zz:bb:cc:dd:ee:ff",
			wantErr: true,
		},
		{
			name:    "no separators",
			input:   "aabbccddeeff",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMAC)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusAuthorized.Valid())
	assert.True(t, StatusQuarantine.Valid())
	assert.True(t, StatusBanned.Valid())
	assert.False(t, Status("allowed").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatusShouldBlock(t *testing.T) {
	assert.False(t, StatusAuthorized.ShouldBlock())
	assert.True(t, StatusQuarantine.ShouldBlock())
	assert.True(t, StatusBanned.ShouldBlock())
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus("  Banned ")
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, got)

	_, err = ParseStatus("blocked")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "duration string",
			input: `"90s"`,
			want:  90 * time.Second,
		},
		{
			name:  "nanoseconds number",
			input: `30000000000`,
			want:  30 * time.Second,
		},
		{
			name:    "bad string",
			input:   `"soon"`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			input:   `["90s"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := d.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}
