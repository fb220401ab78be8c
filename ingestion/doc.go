// Copyright 2025 Poiesic Systems
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


// Package ingestion builds corpus indexes from line-aligned text files.
//
// The Pipeline validates that the source, target and optional notes files
// agree on their phrase count and blank lines before anything is written,
// then embeds one column row by row and stages every pair in a new index
// revision. The revision becomes active only when every row succeeded.
// Cancellation or any row failure leaves the previous revision in place.
//
// Progress updates are delivered on a separate worker and may be coalesced.
// The final update is always delivered.
package ingestion
