// Copyright 2026 The AntPlus Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ant "github.com/AntPlusProject/go-ant"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	tr := New("/dev/ttyUSB0", 0)
	assert.Equal(t, DefaultBaudRate, tr.baudRate)
	assert.Equal(t, ant.TransportSerial, tr.Type())

	tr = New("COM3", 57600)
	assert.Equal(t, 57600, tr.baudRate)
}

func TestUnopenedIO(t *testing.T) {
	t.Parallel()

	tr := New("/dev/ttyUSB0", 0)

	_, err := tr.Read(10 * time.Millisecond)
	require.ErrorIs(t, err, ant.ErrTransportClosed)
	assert.True(t, ant.IsFatal(err))

	err = tr.Write([]byte{0x00})
	require.ErrorIs(t, err, ant.ErrTransportClosed)
}

func TestCloseWithoutOpen(t *testing.T) {
	t.Parallel()

	tr := New("/dev/ttyUSB0", 0)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}
