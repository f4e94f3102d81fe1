// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// UnderscoreCodec wraps the gorilla json2 codec to accept method names in
// underscore form (chain_getHead) instead of the default dotted form
// (chain.GetHead).
type UnderscoreCodec struct{}

// NewUnderscoreCodec creates a codec for underscore method names.
func NewUnderscoreCodec() *UnderscoreCodec {
	return &UnderscoreCodec{}
}

// NewRequest implements rpc.Codec.
func (c *UnderscoreCodec) NewRequest(r *http.Request) rpc.CodecRequest {
	inner := json2.NewCodec().NewRequest(r)
	return &underscoreCodecRequest{CodecRequest: inner.(*json2.CodecRequest)}
}

type underscoreCodecRequest struct {
	*json2.CodecRequest
}

// Method rewrites service_methodName into service.MethodName for gorilla's
// service dispatch.
func (c *underscoreCodecRequest) Method() (string, error) {
	m, err := c.CodecRequest.Method()
	if err != nil || m == "" {
		return m, err
	}

	service, method, found := strings.Cut(m, "_")
	if !found || method == "" {
		return m, fmt.Errorf("invalid rpc method format %q, expected 'module_methodName'", m)
	}

	runes := []rune(method)
	runes[0] = unicode.ToUpper(runes[0])
	return service + "." + string(runes), nil
}
