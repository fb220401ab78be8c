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


// Package reembed rebuilds corpus indexes with a new embedding model or a
// different embedded column.
//
// A Reembedder reads every pair of the active revision in batches, embeds
// the chosen column with retries and exponential backoff, and stages the
// pairs under their existing IDs in a new revision. Commit switches the
// index to the new generation in one step; a failure at any point leaves
// the old revision active. User pairs are never embedded and are not
// touched.
package reembed
