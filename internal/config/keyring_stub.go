/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

//go:build nokeyring

// In-memory keyring stand-in for platforms without a usable keychain,
// selected with -tags nokeyring. Tokens do not survive the process.

package config

import (
	"errors"
	"sync"
)

var (
	memKeyringMu sync.Mutex
	memKeyring   = map[string]string{}
)

func keyringGet(service, key string) (string, error) {
	memKeyringMu.Lock()
	defer memKeyringMu.Unlock()
	v, ok := memKeyring[service+"/"+key]
	if !ok {
		return "", errors.New("secret not found in keyring")
	}
	return v, nil
}

func keyringSet(service, key, value string) error {
	memKeyringMu.Lock()
	defer memKeyringMu.Unlock()
	memKeyring[service+"/"+key] = value
	return nil
}

func keyringDelete(service, key string) error {
	memKeyringMu.Lock()
	defer memKeyringMu.Unlock()
	delete(memKeyring, service+"/"+key)
	return nil
}
