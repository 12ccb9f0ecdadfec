/*
 * WasmHost - The WASM smart contract host runtime
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package values

import (
	"strings"

	"github.com/onflow/wasmhost/errors"
)

const (
	// MaxSmallSymbolLength is the longest symbol which fits an immediate.
	MaxSmallSymbolLength = 9
	// MaxSymbolLength is the longest symbol, small or object.
	MaxSymbolLength = 32

	symbolCharBits = 6
	symbolCharMask = 1<<symbolCharBits - 1
)

// symbolCharCode returns the 6-bit code of a symbol character, or 0 if invalid.
func symbolCharCode(c byte) uint64 {
	switch {
	case c == '_':
		return 1
	case '0' <= c && c <= '9':
		return 2 + uint64(c-'0')
	case 'A' <= c && c <= 'Z':
		return 12 + uint64(c-'A')
	case 'a' <= c && c <= 'z':
		return 38 + uint64(c-'a')
	}
	return 0
}

func symbolCodeChar(code uint64) byte {
	switch {
	case code == 1:
		return '_'
	case code < 12:
		return '0' + byte(code-2)
	case code < 38:
		return 'A' + byte(code-12)
	default:
		return 'a' + byte(code-38)
	}
}

// ValidateSymbol checks that s only consists of symbol characters and is not too long.
func ValidateSymbol(s string) error {
	if len(s) > MaxSymbolLength {
		return errors.NewInvalidInputError("symbol too long: %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		if symbolCharCode(s[i]) == 0 {
			return errors.NewInvalidInputError("invalid symbol character %q", s[i])
		}
	}
	return nil
}

// NewSymbolSmall returns the immediate form of a symbol of at most MaxSmallSymbolLength characters.
func NewSymbolSmall(s string) (Val, error) {
	if len(s) > MaxSmallSymbolLength {
		return 0, errors.NewInvalidInputError("symbol too long for immediate: %d", len(s))
	}
	var body uint64
	for i := 0; i < len(s); i++ {
		code := symbolCharCode(s[i])
		if code == 0 {
			return 0, errors.NewInvalidInputError("invalid symbol character %q", s[i])
		}
		body = body<<symbolCharBits | code
	}
	return fromBody(TagSymbolSmall, body), nil
}

// MustSymbolSmall is like NewSymbolSmall, but panics on error. It is intended for constants.
func MustSymbolSmall(s string) Val {
	v, err := NewSymbolSmall(s)
	if err != nil {
		panic(err)
	}
	return v
}

// SymbolSmall returns the string of a small symbol.
func (v Val) SymbolSmall() (string, error) {
	if err := v.checkTag(TagSymbolSmall); err != nil {
		return "", err
	}
	return decodeSymbolBody(v.body()), nil
}

func decodeSymbolBody(body uint64) string {
	var chars [MaxSmallSymbolLength]byte
	n := MaxSmallSymbolLength
	for body != 0 && n > 0 {
		n--
		chars[n] = symbolCodeChar(body & symbolCharMask)
		body >>= symbolCharBits
	}
	var b strings.Builder
	b.Write(chars[n:])
	return b.String()
}

// validSymbolBody checks that the body consists of non-zero character codes only,
// right-aligned, with at most MaxSmallSymbolLength characters.
func validSymbolBody(body uint64) bool {
	if body>>(symbolCharBits*MaxSmallSymbolLength) != 0 {
		return false
	}
	for body != 0 {
		if body&symbolCharMask == 0 {
			return false
		}
		body >>= symbolCharBits
	}
	return true
}
