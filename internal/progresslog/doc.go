// Copyright (c) 2020 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package progresslog provides periodic logging for proof of work hash searches.

Tests are included to ensure proper functionality.

## Feature Overview

- Maintains cumulative totals about hash search progress between each logging
  interval
  - Total number of hashes
  - Total number of progress reports
  - Index of the block being searched
- Logs all cumulative data every 10 seconds
- Immediately logs any outstanding data when forced, such as when a search
  ends
*/
package progresslog
