// Copyright 2023 The locpub Authors
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

package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion_Compare(t *testing.T) {
	v1 := NewVersion(1, 2, 3)
	v2 := NewVersion(1, 2, 3)
	v3 := NewVersion(1, 3, 0)

	require.Equal(t, "v1.2.3", v1.String())
	require.True(t, v1.IsEqual(v2))
	require.True(t, v3.IsGreater(v1))
	require.True(t, v1.IsLess(v3))
	require.False(t, v1.IsLess(v2))
}
