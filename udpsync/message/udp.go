// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

// MaxMessageSize is the largest packet the library produces.
// It stays below the common 1280 byte IPv6 minimum MTU after IP and UDP headers.
const MaxMessageSize = 1200
