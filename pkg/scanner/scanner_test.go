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

package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanwarden/lanwarden/pkg/logger"
	"github.com/lanwarden/lanwarden/pkg/models"
)

const sampleScanOutput = `Interface: eth0, type: EN10MB, MAC: 11:22:33:44:55:66, IPv4: 192.168.1.10
Starting arp-scan 1.9.7 with 256 hosts (https://github.com/royhills/arp-scan)
192.168.1.1	e4:5d:51:aa:bb:01	Freebox SA
192.168.1.34	AA:BB:CC:DD:EE:02	Espressif Inc.
192.168.1.35	aa:bb:cc:dd:ee:02	Espressif Inc. (DUP: 2)

3 packets received by filter, 0 packets dropped by pcap
Ending arp-scan 1.9.7: 256 hosts scanned in 1.958 seconds (130.75 hosts/sec). 2 responded
`

type fakeRunner struct {
	output      []byte
	err         error
	calls       [][]string
	hadDeadline bool
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	_, f.hadDeadline = ctx.Deadline()
	f.calls = append(f.calls, append([]string{name}, args...))

	return f.output, f.err
}

func newTestScanner(t *testing.T, fake *fakeRunner) *ArpScanner {
	t.Helper()

	config := &Config{Interface: "eth0"}
	require.NoError(t, config.Validate())

	return &ArpScanner{
		config: config,
		runner: fake,
		logger: logger.NewTestLogger(),
	}
}

func TestScanParsesDevices(t *testing.T) {
	fake := &fakeRunner{output: []byte(sampleScanOutput)}
	scanner := newTestScanner(t, fake)

	macs, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"aa:bb:cc:dd:ee:02", "e4:5d:51:aa:bb:01"}, macs)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"arp-scan", "--interface", "eth0", "--localnet", "--quiet"}, fake.calls[0])
	assert.True(t, fake.hadDeadline)
}

func TestScanCommandFailure(t *testing.T) {
	fake := &fakeRunner{err: errors.New("exec: \"arp-scan\": executable file not found in $PATH")}
	scanner := newTestScanner(t, fake)

	_, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanFailed)
}

func TestScanEmptyResultIsAnError(t *testing.T) {
	headerOnly := "Interface: eth0, type: EN10MB\nEnding arp-scan 1.9.7: 256 hosts scanned\n"
	fake := &fakeRunner{output: []byte(headerOnly)}
	scanner := newTestScanner(t, fake)

	_, err := scanner.Scan(context.Background())
	assert.ErrorIs(t, err, ErrEmptyScan)
}

func TestParseScanOutputSkipsMalformedLines(t *testing.T) {
	output := []byte(
		"192.168.1.2\tzz:zz:zz:zz:zz:zz\tBogus Vendor\n" +
			"192.168.1.3\taa:bb:cc\tTruncated\n" +
			"192.168.1.4\taa:bb:cc:dd:ee:ff\tReal Vendor\n")

	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, parseScanOutput(output))
}

func TestParseScanOutputUppercaseMAC(t *testing.T) {
	output := []byte("192.168.1.5\tAA:BB:CC:DD:EE:0F\tWindows Host\n")

	assert.Equal(t, []string{"aa:bb:cc:dd:ee:0f"}, parseScanOutput(output))
}

func TestConfigValidate(t *testing.T) {
	config := &Config{}
	assert.ErrorIs(t, config.Validate(), ErrNoInterface)

	config = &Config{Interface: "wlan0"}
	require.NoError(t, config.Validate())
	assert.Equal(t, models.Duration(30*time.Second), config.Timeout)

	config = &Config{Interface: "wlan0", Timeout: models.Duration(5 * time.Second)}
	require.NoError(t, config.Validate())
	assert.Equal(t, models.Duration(5*time.Second), config.Timeout)
}
