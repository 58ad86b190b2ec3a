// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package json

import (
	gojson "encoding/json"

	"github.com/bytedance/sonic"
	jsoniter "github.com/json-iterator/go"
)

var (
	json = sonic.ConfigStd
	// numberJSON 解码时保留数字原文，避免 int64 经 float64 丢失精度。
	numberJSON = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()

	// Marshal is exported by internal/json package.
	Marshal = json.Marshal
	// Unmarshal is exported by internal/json package.
	Unmarshal = json.Unmarshal
	// MarshalIndent is exported by internal/json package.
	MarshalIndent = json.MarshalIndent
	// NewDecoder is exported by internal/json package.
	NewDecoder = json.NewDecoder
	// NewEncoder is exported by internal/json package.
	NewEncoder = json.NewEncoder
)

type (
	Number     = gojson.Number
	RawMessage = gojson.RawMessage
)

// UnmarshalUseNumber 解码 JSON，数字以 Number 形式保留。
func UnmarshalUseNumber(data []byte, v any) error {
	return numberJSON.Unmarshal(data, v)
}
