// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package providers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
)

// ErrNotAnImage is returned for reference data that does not sniff as an image.
var ErrNotAnImage = errors.New("reference data is not an image")

// DecodeDataURL decodes "data:<mime>;base64,<payload>". A bare base64 payload
// is accepted too. The MIME type is sniffed from the bytes when the URL does
// not declare one.
func DecodeDataURL(in string) (mimeType string, data []byte, err error) {
	payload := strings.TrimSpace(in)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return "", nil, errors.New("malformed data url")
		}
		header = strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(header, ";base64") {
			return "", nil, errors.New("only base64 data urls are supported")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		payload = body
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	if mimeType == "" {
		kind, _ := filetype.Match(data)
		if kind == filetype.Unknown {
			return "", nil, errors.New("unable to detect content type")
		}
		mimeType = kind.MIME.Value
	}
	return mimeType, data, nil
}

// DecodeImageDataURL is DecodeDataURL restricted to images.
func DecodeImageDataURL(in string) (string, []byte, error) {
	mimeType, data, err := DecodeDataURL(in)
	if err != nil {
		return "", nil, err
	}
	if !filetype.IsImage(data) {
		return "", nil, ErrNotAnImage
	}
	return mimeType, data, nil
}

// EncodeDataURL encodes data as a base64 data URL with its sniffed MIME type.
func EncodeDataURL(data []byte) (string, error) {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "", errors.New("unable to detect content type")
	}
	return fmt.Sprintf("data:%s;base64,%s", kind.MIME.Value, base64.StdEncoding.EncodeToString(data)), nil
}
