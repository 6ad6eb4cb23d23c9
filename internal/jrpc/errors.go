// Copyright 2024 The Orchid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jrpc

import "fmt"

// ErrCode is an LSP/JSON-RPC response error code. Any integer is a valid
// ErrCode; codes outside the known taxonomy round-trip unchanged as an
// "unclassified" code (see Name).
type ErrCode int64

// The JSON-RPC-defined codes, plus the LSP extensions this server emits.
const (
	ParseError           ErrCode = -32700
	InvalidRequest       ErrCode = -32600
	MethodNotFound       ErrCode = -32601
	InvalidParams        ErrCode = -32602
	InternalError        ErrCode = -32603
	ServerNotInitialized ErrCode = -32002
	UnknownDeprecated    ErrCode = -32001
	RequestFailed        ErrCode = -32803
	ServerCancelled      ErrCode = -32802
	ContentModified      ErrCode = -32801
	RequestCancelled     ErrCode = -32800
)

var codeNames = map[ErrCode]string{
	ParseError:           "ParseError",
	InvalidRequest:       "InvalidRequest",
	MethodNotFound:       "MethodNotFound",
	InvalidParams:        "InvalidParams",
	InternalError:        "InternalError",
	ServerNotInitialized: "ServerNotInitialized",
	UnknownDeprecated:    "Unknown",
	RequestFailed:        "RequestFailed",
	ServerCancelled:      "ServerCancelled",
	ContentModified:      "ContentModified",
	RequestCancelled:     "RequestCancelled",
}

// Name renders a known code by its taxonomy name, or as an unclassified
// code otherwise. Unclassified codes still round-trip: converting back to
// ErrCode recovers the original integer.
func (c ErrCode) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UnclassifiedError(%d)", int64(c))
}

// ResponseError is the error payload of a JSON-RPC error response.
type ResponseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Data    any     `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.Name(), e.Message)
}

// NewResponseError builds a ResponseError with a message derived from the
// code's taxonomy name if msg is empty.
func NewResponseError(code ErrCode, msg string, data any) *ResponseError {
	if msg == "" {
		msg = code.Name()
	}
	return &ResponseError{Code: code, Message: msg, Data: data}
}
